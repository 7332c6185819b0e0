package main

import (
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ac-schroeder/DJApp/internal/audio"
	"github.com/ac-schroeder/DJApp/internal/config"
	"github.com/ac-schroeder/DJApp/internal/library"
)

func newLibraryCmd(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "library",
		Short: "Inspect and edit the track library file",
	}

	// open loads the library; mutating commands save it afterwards.
	open := func() (*library.Library, error) {
		lib := library.New(library.Config{Path: cfg.LibraryFile}, audio.NewRegistry(cfg.FFmpegPath))
		return lib, lib.Load()
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List all tracks",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				lib, err := open()
				if err != nil {
					return err
				}
				return printTracks(cmd, lib.Tracks())
			},
		},
		&cobra.Command{
			Use:   "search <keyword>",
			Short: "List tracks whose file name contains keyword",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				lib, err := open()
				if err != nil {
					return err
				}
				return printTracks(cmd, lib.Search(args[0]))
			},
		},
		&cobra.Command{
			Use:   "add <file>...",
			Short: "Add audio files",
			Args:  cobra.MinimumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				lib, err := open()
				if err != nil {
					return err
				}
				added, err := lib.Import(cmd.Context(), args)
				if err != nil {
					return err
				}
				if len(added) < len(args) {
					fmt.Fprintf(cmd.ErrOrStderr(), "%d of %d files could not be read\n", len(args)-len(added), len(args))
				}
				if err := printTracks(cmd, added); err != nil {
					return err
				}
				return lib.Save()
			},
		},
		&cobra.Command{
			Use:   "remove <id>",
			Short: "Remove a track by ID",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				id, err := strconv.Atoi(args[0])
				if err != nil {
					return fmt.Errorf("invalid track id %q", args[0])
				}
				lib, err := open()
				if err != nil {
					return err
				}
				if !lib.Remove(id) {
					return fmt.Errorf("%w: id %d", library.ErrTrackNotFound, id)
				}
				return lib.Save()
			},
		},
		&cobra.Command{
			Use:   "clear",
			Short: "Remove every track",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				lib, err := open()
				if err != nil {
					return err
				}
				lib.Clear()
				return lib.Save()
			},
		},
		&cobra.Command{
			Use:   "export [file.m3u]",
			Short: "Write the library as an M3U playlist (stdout by default)",
			Args:  cobra.MaximumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				lib, err := open()
				if err != nil {
					return err
				}
				m3u := lib.ExportM3U()
				if len(args) == 0 {
					_, err := fmt.Fprint(cmd.OutOrStdout(), m3u)
					return err
				}
				return os.WriteFile(args[0], []byte(m3u), 0o644)
			},
		},
	)
	return cmd
}

func printTracks(cmd *cobra.Command, tracks []library.Track) error {
	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tFILE\tLENGTH\tPATH")
	for _, t := range tracks {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", t.ID, t.FileName, t.Length, t.Path)
	}
	return tw.Flush()
}
