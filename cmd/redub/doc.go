// Command redub dubs a video into another language.
//
// `redub dub` runs the full pipeline for one video: it transcribes and
// translates when no segment file is given, then assigns speakers, curates
// voice samples, synthesizes speech, prepares the background, and remuxes
// the result. Job history lives in a sqlite database under the state
// directory and is shown by `redub jobs`.
package main
