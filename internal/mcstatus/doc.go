// Package mcstatus looks up the public status of a Java Edition server via
// the mcstatus.io API. The panel uses it to list players once the remote
// task reports RUNNING.
package mcstatus
