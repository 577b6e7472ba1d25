package ui

import (
	"fmt"
	"io"
	"os"

	"golang.org/x/term"
)

const Logo = `
 __   __           _   _                           _
 \ \ / /__ _  __ _| | | | __ _ _ ____   _____  ___| |_
  \ V / _' |/ _' | |_| |/ _' | '__\ \ / / _ \/ __| __|
   | | (_| | (_| |  _  | (_| | |   \ V /  __/\__ \ |_
   |_|\__, |\__, |_| |_|\__,_|_|    \_/ \___||___/\__|
      |___/ |___/        feed harvester
`

// Out receives everything printed by this package.
var Out io.Writer = os.Stdout

var colorEnabled = term.IsTerminal(int(os.Stdout.Fd()))

// SetColor forces ANSI colors on or off.
func SetColor(enabled bool) { colorEnabled = enabled }

var (
	Cyan    = colorize("\033[36m%s\033[0m")
	Yellow  = colorize("\033[33m%s\033[0m")
	Red     = colorize("\033[31m%s\033[0m")
	Green   = colorize("\033[32m%s\033[0m")
	Magenta = colorize("\033[35m%s\033[0m")
	Dim     = colorize("\033[2m%s\033[0m")
)

func colorize(colorString string) func(string) string {
	return func(text string) string {
		if !colorEnabled {
			return text
		}
		return fmt.Sprintf(colorString, text)
	}
}

func PrintLogo() {
	fmt.Fprint(Out, Cyan(Logo))
}

// PrintError prints msg in red, followed by the first arg when given.
func PrintError(msg string, args ...interface{}) {
	if len(args) > 0 {
		fmt.Fprintln(Out, Red(msg+": "+fmt.Sprintf("%v", args[0])))
	} else {
		fmt.Fprintln(Out, Red(msg))
	}
}

func PrintSuccess(msg string) {
	fmt.Fprintln(Out, Green(msg))
}

func PrintInfo(label string, value string) {
	fmt.Fprintf(Out, "%s: %s\n", Cyan(label), Yellow(value))
}

func PrintWarning(msg string, args ...interface{}) {
	if len(args) > 0 {
		fmt.Fprintln(Out, Yellow(msg+": "+fmt.Sprintf("%v", args[0])))
	} else {
		fmt.Fprintln(Out, Yellow(msg))
	}
}

func PrintHighlight(msg string) {
	fmt.Fprintln(Out, Magenta(msg))
}
