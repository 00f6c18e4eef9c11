package config

import (
	"flag"
	"fmt"
	"io"
)

const usageLine = "Usage: mapd-server <catalog path> [--cpu|--gpu] [-p <port number>]" +
	" [--http-port <http port number>] [--flush-log] [--version|-v]"

// PrintHelp writes the usage banner and the basic option set to w.
// When advanced is true the full option set is printed.
func PrintHelp(w io.Writer, fs *flag.FlagSet, advanced bool) {
	fmt.Fprintln(w, usageLine)
	fmt.Fprintln(w)
	fs.VisitAll(func(f *flag.Flag) {
		if !advanced && advancedFlags[f.Name] {
			return
		}
		// Shorthand registrations are printed with their long form.
		if len(f.Name) == 1 {
			return
		}
		name, usage := flag.UnquoteUsage(f)
		if name != "" {
			fmt.Fprintf(w, "  --%s <%s>\n", f.Name, name)
		} else {
			fmt.Fprintf(w, "  --%s\n", f.Name)
		}
		fmt.Fprintf(w, "        %s", usage)
		if f.DefValue != "" && f.DefValue != "false" {
			fmt.Fprintf(w, " (default %s)", f.DefValue)
		}
		fmt.Fprintln(w)
	})
}
