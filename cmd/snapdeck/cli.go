package main

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/urfave/cli/v2"

	"snapdeck/src/artifact"
	"snapdeck/src/coordinator"
	"snapdeck/src/errs"
	"snapdeck/src/input"
	"snapdeck/src/session"
	"snapdeck/src/store"
)

// newCLIApp creates the CLI application with all commands.
func newCLIApp(coord *coordinator.Coordinator, st *store.Store) *cli.App {
	return &cli.App{
		Name:    "snapdeck",
		Usage:   "Screen capture with recognized-text artifacts",
		Version: Version,
		Commands: []*cli.Command{
			captureCmd(coord),
			listCmd(st),
			showCmd(st),
			recognizeCmd(coord, st),
			cancelCmd(coord),
			renameCmd(st),
			tagCmd(st),
			favoriteCmd(st),
			deleteCmd(st),
			copyCmd(coord),
			pruneCmd(st),
		},
	}
}

func captureCmd(coord *coordinator.Coordinator) *cli.Command {
	return &cli.Command{
		Name:  "capture",
		Usage: "Interactively capture a screen region or window",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "mode", Aliases: []string{"m"}, Value: "region", Usage: "Capture mode: region|window"},
			&cli.IntFlag{Name: "timeout", Value: 120, Usage: "Seconds to wait for a selection"},
		},
		Action: func(c *cli.Context) error {
			mode, err := parseMode(c.String("mode"))
			if err != nil {
				return err
			}

			type outcome struct {
				artifact *artifact.Artifact
				err      error
			}
			done := make(chan outcome, 1)
			sess, err := coord.StartCapture(mode, coordinator.Callbacks{
				OnComplete: func(a artifact.Artifact) { done <- outcome{artifact: &a} },
				OnCancel:   func() { done <- outcome{} },
				OnError:    func(err error) { done <- outcome{err: err} },
			})
			if err != nil {
				return err
			}

			if !sess.Done() {
				src := input.Start(sess.Surface(), sess)
				defer src.Stop()
			}

			select {
			case o := <-done:
				if o.err != nil {
					return o.err
				}
				if o.artifact == nil {
					fmt.Fprintln(c.App.Writer, "cancelled")
					return nil
				}
				fmt.Fprintf(c.App.Writer, "created %s (%s)\n", o.artifact.ID, o.artifact.Title)
				return nil
			case <-time.After(time.Duration(c.Int("timeout")) * time.Second):
				sess.Cancel()
				return fmt.Errorf("capture timed out")
			}
		},
	}
}

func listCmd(st *store.Store) *cli.Command {
	return &cli.Command{
		Name:  "list",
		Usage: "List artifacts, favorites first, newest first",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "tag", Aliases: []string{"t"}, Usage: "Only artifacts carrying this tag"},
		},
		Action: func(c *cli.Context) error {
			tag := c.String("tag")
			for _, a := range st.Sorted() {
				if tag != "" && !a.HasTag(tag) {
					continue
				}
				star := " "
				if a.Favorite {
					star = "*"
				}
				fmt.Fprintf(c.App.Writer, "%s %s  %-7s  %s  %s\n",
					star, a.ID, a.RecognitionStatus, a.CreatedAt.Format(time.DateTime), a.Title)
			}
			return nil
		},
	}
}

func showCmd(st *store.Store) *cli.Command {
	return &cli.Command{
		Name:      "show",
		Usage:     "Print one artifact's metadata as JSON",
		ArgsUsage: "<id>",
		Action: func(c *cli.Context) error {
			a, ok := st.Get(c.Args().First())
			if !ok {
				return errs.NewNotFound(c.Args().First())
			}
			data, err := json.MarshalIndent(a, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(c.App.Writer, string(data))
			return nil
		},
	}
}

func recognizeCmd(coord *coordinator.Coordinator, st *store.Store) *cli.Command {
	return &cli.Command{
		Name:      "recognize",
		Usage:     "Run text recognition over an artifact",
		ArgsUsage: "<id>",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "wait", Aliases: []string{"w"}, Usage: "Block until recognition finishes"},
			&cli.IntFlag{Name: "timeout", Value: 60, Usage: "Seconds to wait with --wait"},
		},
		Action: func(c *cli.Context) error {
			id := c.Args().First()

			updates := make(chan artifact.Artifact, 8)
			st.Subscribe(func(ev store.Event) {
				if ev.Kind == store.EventUpdated && ev.Artifact.ID == id {
					select {
					case updates <- ev.Artifact:
					default:
					}
				}
			})

			if err := coord.RecognizeArtifact(id); err != nil {
				return err
			}
			if !c.Bool("wait") {
				fmt.Fprintln(c.App.Writer, "recognition started")
				return nil
			}

			deadline := time.After(time.Duration(c.Int("timeout")) * time.Second)
			for {
				select {
				case a := <-updates:
					if !a.RecognitionStatus.Terminal() {
						continue
					}
					if a.RecognitionStatus == artifact.StatusFailed {
						return fmt.Errorf("recognition failed for %s", id)
					}
					fmt.Fprintln(c.App.Writer, a.RecognizedText)
					return nil
				case <-deadline:
					return fmt.Errorf("timed out waiting for recognition of %s", id)
				}
			}
		},
	}
}

func cancelCmd(coord *coordinator.Coordinator) *cli.Command {
	return &cli.Command{
		Name:      "cancel",
		Usage:     "Abort an in-flight recognition",
		ArgsUsage: "<id>",
		Action: func(c *cli.Context) error {
			if !coord.CancelRecognition(c.Args().First()) {
				return fmt.Errorf("no recognition in flight for %s", c.Args().First())
			}
			fmt.Fprintln(c.App.Writer, "cancelled")
			return nil
		},
	}
}

func renameCmd(st *store.Store) *cli.Command {
	return &cli.Command{
		Name:      "rename",
		Usage:     "Set an artifact's title",
		ArgsUsage: "<id> <title>",
		Action: func(c *cli.Context) error {
			if c.NArg() < 2 {
				return fmt.Errorf("usage: rename <id> <title>")
			}
			_, err := st.Rename(c.Args().Get(0), strings.Join(c.Args().Slice()[1:], " "))
			return err
		},
	}
}

func tagCmd(st *store.Store) *cli.Command {
	return &cli.Command{
		Name:      "tag",
		Usage:     "Replace an artifact's tags",
		ArgsUsage: "<id> <tag,tag,...>",
		Action: func(c *cli.Context) error {
			if c.NArg() < 2 {
				return fmt.Errorf("usage: tag <id> <tag,tag,...>")
			}
			var tags []string
			for _, t := range strings.Split(c.Args().Get(1), ",") {
				if trimmed := strings.TrimSpace(t); trimmed != "" {
					tags = append(tags, trimmed)
				}
			}
			_, err := st.SetTags(c.Args().Get(0), tags)
			return err
		},
	}
}

func favoriteCmd(st *store.Store) *cli.Command {
	return &cli.Command{
		Name:      "favorite",
		Usage:     "Toggle an artifact's favorite flag",
		ArgsUsage: "<id>",
		Action: func(c *cli.Context) error {
			a, err := st.ToggleFavorite(c.Args().First())
			if err != nil {
				return err
			}
			fmt.Fprintf(c.App.Writer, "favorite=%v\n", a.Favorite)
			return nil
		},
	}
}

func deleteCmd(st *store.Store) *cli.Command {
	return &cli.Command{
		Name:      "delete",
		Usage:     "Delete one or more artifacts (missing ids are ignored)",
		ArgsUsage: "<id> [id...]",
		Action: func(c *cli.Context) error {
			return st.DeleteMany(c.Args().Slice())
		},
	}
}

func copyCmd(coord *coordinator.Coordinator) *cli.Command {
	return &cli.Command{
		Name:      "copy",
		Usage:     "Copy an artifact's recognized text to the clipboard",
		ArgsUsage: "<id>",
		Action: func(c *cli.Context) error {
			return coord.CopyText(c.Args().First())
		},
	}
}

func pruneCmd(st *store.Store) *cli.Command {
	return &cli.Command{
		Name:  "prune",
		Usage: "Reload from disk, dropping sidecars whose image is missing",
		Action: func(c *cli.Context) error {
			pruned, err := st.Load()
			if err != nil {
				return err
			}
			fmt.Fprintf(c.App.Writer, "pruned %d, %d artifacts remain\n", pruned, st.Len())
			return nil
		},
	}
}

func parseMode(s string) (session.Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "region", "":
		return session.ModeRegion, nil
	case "window":
		return session.ModeWindow, nil
	default:
		return 0, fmt.Errorf("unknown capture mode %q (want region or window)", s)
	}
}
