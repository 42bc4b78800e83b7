package cmd

import (
	"strconv"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/justapithecus/slate/cli/render"
	"github.com/justapithecus/slate/iox"
	"github.com/justapithecus/slate/store"
)

// NotebookListing is the rendered view of stored notebooks.
type NotebookListing struct {
	Notebooks []NotebookRow `json:"notebooks" yaml:"notebooks"`
}

// NotebookRow is one stored notebook in the listing.
type NotebookRow struct {
	Path      string `json:"path" yaml:"path"`
	Name      string `json:"name" yaml:"name"`
	Cells     int    `json:"cells" yaml:"cells"`
	UpdatedAt string `json:"updated_at" yaml:"updated_at"`
}

func (l NotebookListing) TableHeaders() []string {
	return []string{"PATH", "NAME", "CELLS", "UPDATED"}
}

func (l NotebookListing) TableRows() [][]string {
	rows := make([][]string, 0, len(l.Notebooks))
	for _, nb := range l.Notebooks {
		rows = append(rows, []string{nb.Path, nb.Name, strconv.Itoa(nb.Cells), nb.UpdatedAt})
	}
	return rows
}

func newNotebookListing(records []*store.Record) NotebookListing {
	listing := NotebookListing{Notebooks: []NotebookRow{}}
	for _, rec := range records {
		listing.Notebooks = append(listing.Notebooks, NotebookRow{
			Path:      rec.Path,
			Name:      rec.Name,
			Cells:     len(rec.Cells),
			UpdatedAt: rec.UpdatedAt.UTC().Format(time.RFC3339),
		})
	}
	return listing
}

// ListCommand returns the list command: stored notebook records.
func ListCommand() *cli.Command {
	return &cli.Command{
		Name:   "list",
		Usage:  "List stored notebooks",
		Flags:  ReadOnlyFlags(),
		Action: listAction,
	}
}

func listAction(c *cli.Context) error {
	r, err := render.NewRenderer(c)
	if err != nil {
		return cli.Exit(err.Error(), ExitHostFault)
	}

	cfg, err := loadConfig(c)
	if err != nil {
		return cli.Exit(err.Error(), ExitHostFault)
	}

	s, err := store.Open(cfg.Store)
	if err != nil {
		return cli.Exit(err.Error(), ExitHostFault)
	}
	defer iox.DiscardClose(s)

	records, err := s.GetAll(c.Context)
	if err != nil {
		return cli.Exit(err.Error(), ExitHostFault)
	}

	return r.Render(newNotebookListing(records))
}
