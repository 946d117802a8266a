// Package listing discovers the contents of remote directory trees served
// as autoindex HTML pages (the FastDL convention).
//
// Each directory URL yields one server-generated page whose anchors name
// the directory's immediate children; a trailing "/" in an href marks a
// subdirectory. No structured API is assumed.
package listing
