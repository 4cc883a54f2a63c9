// Package process runs subprocesses: one-shot commands with Run, and
// long-lived line-oriented workers with Start.
//
// Both put the child in its own process group and stop it with SIGTERM
// followed by SIGKILL after a grace period.
package process
