// Package preflight provides readiness checks for the directories and
// binaries a basecalling run depends on.
//
// "poreduck check" prints every result; "poreduck run" refuses to start when
// a required check fails so a misconfigured run does not submit jobs that
// cannot write their outputs.
package preflight
