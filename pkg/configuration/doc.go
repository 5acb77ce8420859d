// Package configuration provides loading facilities for the YAML-based
// mount configuration file that tells medialibd which directories to serve
// as libraries and how to tune their background indexing.
package configuration
