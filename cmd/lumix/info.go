package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/vsariola/lumix/cmd"
	"github.com/vsariola/lumix/plugins"
	"github.com/vsariola/lumix/version"
)

var midiInputsCmd = &cobra.Command{
	Use:   "midi-inputs",
	Short: "List the MIDI input devices",
	Run: func(c *cobra.Command, args []string) {
		mc := cmd.NewMidiContext()
		defer mc.Close()
		out := c.OutOrStdout()
		fmt.Fprintf(out, "MIDI: %s\n", titleCaser.String(mc.Support().String()))
		for input := range mc.Inputs {
			fmt.Fprintf(out, "  %s\n", input)
		}
	},
}

var pluginsCmd = &cobra.Command{
	Use:   "plugins",
	Short: "List the built-in processors",
	Run: func(c *cobra.Command, args []string) {
		for _, name := range plugins.Names() {
			fmt.Fprintln(c.OutOrStdout(), name)
		}
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(c *cobra.Command, args []string) {
		fmt.Fprintln(c.OutOrStdout(), version.String())
	},
}

func init() {
	rootCmd.AddCommand(midiInputsCmd, pluginsCmd, versionCmd)
}
