package commands

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/romato/romato/internal/discovery"
)

const restaurantsRoute = "/restaurants"

type BrowseCmd struct {
	Page     int `help:"Page number" default:"1"`
	PageSize int `help:"Restaurants per page (default from config)"`
}

func (c *BrowseCmd) Run(ctx context.Context, globals *Globals) error {
	return globals.run(ctx, restaurantsRoute, func(app *App) error {
		engine := app.Engine()
		if err := engine.FetchDefaultListing(ctx, c.Page, c.PageSize); err != nil {
			return err
		}
		printListing(app.Out, engine.Snapshot())
		return nil
	})
}

type SearchCmd struct {
	City   string `help:"City (default from config)"`
	Date   string `help:"Date as YYYY-MM-DD"`
	Time   string `help:"Time, 24-hour or 12-hour with AM/PM" default:"19:00"`
	People int    `help:"Party size" default:"1"`
	Query  string `arg:"" optional:"" help:"Free text such as a cuisine or name"`
	Page   int    `help:"Page number" default:"1"`
}

func (c *SearchCmd) Run(ctx context.Context, globals *Globals) error {
	return globals.run(ctx, restaurantsRoute, func(app *App) error {
		engine := app.Engine()

		patch, err := c.patch()
		if err != nil {
			return err
		}
		if err := engine.SetSearchCriteria(patch); err != nil {
			return err
		}

		if err := engine.Search(ctx); err != nil {
			return err
		}
		for r := engine.Snapshot().Results; r.Page < c.Page && r.HasNext(); r = engine.Snapshot().Results {
			if err := engine.NextPage(ctx); err != nil {
				return err
			}
		}

		printListing(app.Out, engine.Snapshot())
		return nil
	})
}

func (c *SearchCmd) patch() (discovery.CriteriaPatch, error) {
	var p discovery.CriteriaPatch
	if c.City != "" {
		p.Location = &c.City
	}
	if c.Date != "" {
		d, err := discovery.ParseDate(c.Date)
		if err != nil {
			return p, err
		}
		p.Date = &d
	}
	if c.Time != "" {
		p.Time = &c.Time
	}
	if c.People != 0 {
		p.PartySize = &c.People
	}
	if c.Query != "" {
		p.Query = &c.Query
	}
	return p, nil
}

func printListing(w io.Writer, snap discovery.Snapshot) {
	r := snap.Results

	if r.Mode == discovery.ModeActiveSearch {
		c := snap.Criteria
		date := c.DateString()
		if date == "" {
			date = "any date"
		}
		fmt.Fprintf(w, "Restaurants in %s on %s at %s for %d:\n", c.Location, date, c.Time, c.PartySize)
	} else {
		fmt.Fprintln(w, "Popular restaurants:")
	}

	if len(r.Items) == 0 {
		fmt.Fprintln(w, "No restaurants found.")
	} else {
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tNAME\tCUISINE\tRATING\tPRICE")
		for _, item := range r.Items {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%.1f\t%s\n",
				item.ID, item.Name, item.Cuisine, float64(item.Rating), item.PriceIndicator())
		}
		tw.Flush()
	}

	total := ""
	if r.TotalItems != nil {
		total = fmt.Sprintf(", %d restaurants", *r.TotalItems)
	}
	fmt.Fprintf(w, "\nPage %d/%d%s\n", r.Page, r.TotalPages, total)
}

// ExploreCmd is a line-oriented session over one discovery engine.
type ExploreCmd struct{}

const exploreHelp = `Commands:
  hot [page]          popular restaurants
  search [city]       run a search, optionally in another city
  city <name>         set the city
  date <YYYY-MM-DD>   set the date, "none" clears it
  time <time>         set the time, e.g. 19:30 or 7:30 PM
  people <n>          set the party size
  query <text>        set free text, "none" clears it
  next, prev          page through the current results
  criteria            show the current criteria
  cities, times       list suggested cities and times
  help                show this help
  quit                leave
`

func (c *ExploreCmd) Run(ctx context.Context, globals *Globals) error {
	return globals.run(ctx, restaurantsRoute, func(app *App) error {
		engine := app.Engine()
		cancel := engine.Subscribe(func(s discovery.Snapshot) {
			if s.IsLoading {
				fmt.Fprintln(app.Out, "Loading...")
			}
		})
		defer cancel()

		app.print(exploreHelp)

		scanner := bufio.NewScanner(app.In)
		for {
			app.printf("> ")
			if !scanner.Scan() {
				app.println()
				return scanner.Err()
			}
			if err := ctx.Err(); err != nil {
				return err
			}

			quit, err := explore(ctx, app, engine, scanner.Text())
			if err != nil && !errors.Is(err, discovery.ErrSuperseded) {
				app.printf("Error: %s\n", err)
			}
			if quit {
				return nil
			}
		}
	})
}

func explore(ctx context.Context, app *App, engine *discovery.Engine, line string) (bool, error) {
	cmd, arg, _ := strings.Cut(strings.TrimSpace(line), " ")
	arg = strings.TrimSpace(arg)

	switch strings.ToLower(cmd) {
	case "":
		return false, nil
	case "quit", "exit", "q":
		return true, nil
	case "help", "?":
		app.print(exploreHelp)
	case "hot":
		page := 1
		if arg != "" {
			n, err := strconv.Atoi(arg)
			if err != nil {
				return false, fmt.Errorf("invalid page %q", arg)
			}
			page = n
		}
		return false, listAfter(app, engine, engine.FetchDefaultListing(ctx, page, 0))
	case "search", "s":
		if arg != "" {
			if err := engine.SetSearchCriteria(discovery.CriteriaPatch{Location: &arg}); err != nil {
				return false, err
			}
		}
		return false, listAfter(app, engine, engine.Search(ctx))
	case "next", "n":
		if !engine.Snapshot().Results.HasNext() {
			app.println("Already on the last page.")
			return false, nil
		}
		return false, listAfter(app, engine, engine.NextPage(ctx))
	case "prev", "p":
		if !engine.Snapshot().Results.HasPrev() {
			app.println("Already on the first page.")
			return false, nil
		}
		return false, listAfter(app, engine, engine.PrevPage(ctx))
	case "city":
		return false, criteriaAfter(app, engine, engine.SetSearchCriteria(discovery.CriteriaPatch{Location: &arg}))
	case "date":
		if strings.EqualFold(arg, "none") {
			arg = ""
		}
		d, err := discovery.ParseDate(arg)
		if err != nil {
			return false, err
		}
		return false, criteriaAfter(app, engine, engine.SetSearchCriteria(discovery.CriteriaPatch{Date: &d}))
	case "time":
		return false, criteriaAfter(app, engine, engine.SetSearchCriteria(discovery.CriteriaPatch{Time: &arg}))
	case "people":
		n, err := strconv.Atoi(arg)
		if err != nil {
			return false, fmt.Errorf("invalid party size %q", arg)
		}
		return false, criteriaAfter(app, engine, engine.SetSearchCriteria(discovery.CriteriaPatch{PartySize: &n}))
	case "query":
		if strings.EqualFold(arg, "none") {
			arg = ""
		}
		return false, criteriaAfter(app, engine, engine.SetSearchCriteria(discovery.CriteriaPatch{Query: &arg}))
	case "criteria":
		printCriteria(app.Out, engine.Criteria())
	case "cities":
		app.println(strings.Join(discovery.Cities, "\n"))
	case "times":
		app.println(strings.Join(discovery.TimeOptions, "\n"))
	default:
		return false, fmt.Errorf("unknown command %q, type help", cmd)
	}
	return false, nil
}

func listAfter(app *App, engine *discovery.Engine, err error) error {
	if err != nil {
		return err
	}
	printListing(app.Out, engine.Snapshot())
	return nil
}

func criteriaAfter(app *App, engine *discovery.Engine, err error) error {
	if err != nil {
		return err
	}
	printCriteria(app.Out, engine.Criteria())
	return nil
}

func printCriteria(w io.Writer, c discovery.SearchCriteria) {
	date := c.DateString()
	if date == "" {
		date = "-"
	}
	query := c.Query
	if query == "" {
		query = "-"
	}
	fmt.Fprintf(w, "city=%s date=%s time=%s people=%d query=%s\n", c.Location, date, c.Time, c.PartySize, query)
}
