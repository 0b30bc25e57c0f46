// Package logs reads the daemon log file for the CLI.
//
// Reads are bounded: Last keeps a ring of the final N matching lines and
// Since resumes from a byte offset, so follow mode never rereads the file.
// A Filter narrows output to lines mentioning a job or video.
package logs
