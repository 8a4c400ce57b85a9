// Package pathaccess finds the closest existing ancestor of a prospective
// install path and reports whether it can be written to, so the installer can
// fail before any download starts.
package pathaccess
