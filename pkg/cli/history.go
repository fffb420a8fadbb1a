package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/urfave/cli/v2"

	"github.com/digiscan/dumpcontact/pkg/config"
	"github.com/digiscan/dumpcontact/pkg/core"
	"github.com/digiscan/dumpcontact/pkg/history"
)

var historyCommand = &cli.Command{
	Name:  "history",
	Usage: "List past exports",
	Description: `List recorded export attempts, newest first.

Examples:
  dumpcontact history
  dumpcontact history --kind sms --limit 5`,
	Flags: []cli.Flag{
		&cli.IntFlag{
			Name:  "limit",
			Usage: "Show at most N exports (0 = all)",
			Value: 20,
		},
		&cli.StringFlag{
			Name:  "kind",
			Usage: "Only show exports of this kind (calls, sms, contacts)",
		},
	},
	Action: runHistory,
}

func runHistory(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	filter := history.Filter{Limit: c.Int("limit")}
	if k := c.String("kind"); k != "" {
		kind, err := core.ParseKind(k)
		if err != nil {
			return err
		}
		filter.Kind = kind.String()
	}

	store, err := history.Open(config.ExpandHome(cfg.History))
	if err != nil {
		return fmt.Errorf("open history: %w", err)
	}
	defer store.Close()

	entries, err := store.List(c.Context, filter)
	if err != nil {
		return err
	}

	out := c.App.Writer
	if len(entries) == 0 {
		fmt.Fprintln(out, "No exports recorded.")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "WHEN\tKIND\tSTATUS\tROWS\tSIZE\tFILE")
	for _, e := range entries {
		file := e.FileName
		if e.Status != core.StatusExported.String() {
			file = e.Error
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\t%s\n",
			humanize.Time(e.CreatedAt), e.Kind, e.Status, e.Rows, humanize.Bytes(uint64(e.Bytes)), file)
	}
	return w.Flush()
}
