// Package main hosts the subtrans CLI and daemon entrypoint.
//
// Every subcommand except config init and daemon talks to a running daemon
// over its unix socket. The daemon subcommand runs the long-lived process
// itself: queue, translation runner, IPC socket, and the optional HTTP API
// and broker bridge.
package main
