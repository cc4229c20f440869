// Package gallery turns uploaded files into posts.
//
// Uploads are accepted by extension only: the lowercased extension must be
// in the configured allow-list. The file is stored under a fresh UUID name
// keeping that extension, and mp4, mov and webm become video posts while
// everything else is an image.
package gallery
