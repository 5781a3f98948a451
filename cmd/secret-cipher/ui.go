package main

import (
	"fmt"
	"io"

	"github.com/fatih/color"
)

var (
	success = color.GreenString("✓")
	failure = color.RedString("✗")
	hint    = color.CyanString("→")
)

func printSuccess(w io.Writer, format string, args ...interface{}) {
	fmt.Fprintf(w, success+" "+format+"\n", args...)
}

func printHint(w io.Writer, format string, args ...interface{}) {
	fmt.Fprintf(w, hint+" "+format+"\n", args...)
}

func code(s string) string {
	return color.YellowString(s)
}
