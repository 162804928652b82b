// Package assets embeds secretgate's HTML templates and static files.
//
// Templates are parsed by the web package at startup. Static files are served
// under /public by Handler, optionally from a directory on disk during
// development.
package assets
