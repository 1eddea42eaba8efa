// Package file persists tracker state and the member roster as plain files
// in the working tree, so a CI checkout can carry them between runs.
package file
