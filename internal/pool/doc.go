// Package pool provides the bounded execution pool that runs submitted tasks
// out-of-line from their submitters. Each submission yields a Future that
// reports the task's disposition and carries its outcome once terminal.
package pool
