// Package deps reports whether the external media tools reel shells out to
// are installed, and which versions they are.
package deps
