// Package pathutil splits slash-separated archive entry names.
package pathutil

import "strings"

// Base returns the last element of an entry name. Directory entries keep
// their trailing slash in the archive, so it is dropped first. Empty names
// and "." return ".".
func Base(name string) string {
	name = strings.TrimSuffix(name, "/")
	if name == "" || name == "." {
		return "."
	}
	if i := strings.LastIndexByte(name, '/'); i >= 0 {
		return name[i+1:]
	}
	return name
}

// DirPrefix returns the prefix shared by every entry under directory dir.
// The root "." has the empty prefix.
func DirPrefix(dir string) string {
	if dir == "." {
		return ""
	}
	return dir + "/"
}

// Child returns the element of name immediately below prefix. nested reports
// whether name continues past that element, making child a directory. ok is
// false when name is not under prefix or names the directory itself.
func Child(name, prefix string) (child string, nested, ok bool) {
	rest, found := strings.CutPrefix(name, prefix)
	if !found || rest == "" {
		return "", false, false
	}
	child, _, nested = strings.Cut(rest, "/")
	if child == "" {
		return "", false, false
	}
	return child, nested, true
}
