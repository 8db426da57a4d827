// Package folder integrates with the desktop: revealing the download folder
// in the file manager and asking the user to choose a new one.
//
// Both operations shell out to the platform's own tools (open/osascript on
// macOS, xdg-open and zenity or kdialog elsewhere). On a headless machine the
// commands are missing and callers get ErrUnsupported.
package folder
