package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/danielgtaylor/huma/v2/humacli"
	"github.com/paulmach/orb"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/joeblew999/plat-filmloc/internal/config"
	"github.com/joeblew999/plat-filmloc/internal/content"
	"github.com/joeblew999/plat-filmloc/internal/geoindex"
	"github.com/joeblew999/plat-filmloc/internal/kv"
	"github.com/joeblew999/plat-filmloc/internal/logging"
	"github.com/joeblew999/plat-filmloc/internal/server"
	"github.com/joeblew999/plat-filmloc/internal/service"
)

// Options defines all CLI flags and env vars for the server.
// Flags: --host, --port, --data-dir, --web-dir, --config
// Env vars: SERVICE_HOST, SERVICE_PORT, SERVICE_DATA_DIR, SERVICE_WEB_DIR, SERVICE_CONFIG
type Options struct {
	Host    string `doc:"Host to bind to" default:"0.0.0.0"`
	Port    int    `doc:"Port to listen on" short:"p" default:"8086"`
	DataDir string `doc:"Directory for favorites storage" default:".data"`
	WebDir  string `doc:"Path to a web/ directory overriding the embedded assets"`
	Config  string `doc:"Path to a config file (YAML, JSON or TOML)"`
}

// env bundles what every subcommand needs.
type env struct {
	cfg     *config.Config
	log     zerolog.Logger
	content *content.Client
}

func setup(opts *Options) (*env, error) {
	cfg, err := config.Load(opts.Config)
	if err != nil {
		return nil, err
	}
	cfg.Storage.DataDir = opts.DataDir
	log := logging.New(os.Stderr, cfg.LogLevel, cfg.LogFormat)
	return &env{cfg: cfg, log: log, content: content.New(cfg.Content.Config, log)}, nil
}

func newServer(opts *Options, e *env, store kv.Store) (*server.Server, error) {
	return server.New(server.Config{
		Host:   opts.Host,
		Port:   strconv.Itoa(opts.Port),
		WebDir: opts.WebDir,
		App:    *e.cfg,
	}, e.content, store, e.log)
}

func fail(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(1)
}

func main() {
	cli := humacli.New(func(hooks humacli.Hooks, opts *Options) {
		e, err := setup(opts)
		if err != nil {
			fail("%v", err)
		}
		store, err := kv.Open(e.cfg.Storage)
		if err != nil {
			fail("opening %s storage: %v", e.cfg.Storage.Backend, err)
		}
		srv, err := newServer(opts, e, store)
		if err != nil {
			fail("%v", err)
		}
		if e.cfg.Content.Endpoint == "" {
			e.log.Warn().Msg("no content endpoint configured; set HYGRAPH_ENDPOINT")
		}

		addr := fmt.Sprintf("%s:%d", opts.Host, opts.Port)
		httpServer := &http.Server{Addr: addr, Handler: srv, ReadHeaderTimeout: 10 * time.Second}

		hooks.OnStart(func() {
			displayHost := opts.Host
			if displayHost == "0.0.0.0" {
				displayHost = "localhost"
			}
			baseURL := fmt.Sprintf("http://%s:%d", displayHost, opts.Port)

			e.log.Info().
				Str("url", baseURL).
				Str("docs", baseURL+"/docs").
				Str("storage", e.cfg.Storage.Backend).
				Msg("plat-filmloc server starting")

			if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				e.log.Fatal().Err(err).Msg("server error")
			}
		})

		hooks.OnStop(func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := httpServer.Shutdown(ctx); err != nil {
				e.log.Warn().Err(err).Msg("shutdown")
			}
			if err := srv.Close(); err != nil {
				e.log.Warn().Err(err).Msg("close")
			}
		})
	})

	cli.Root().Use = "filmloc"
	cli.Root().Short = "Map of film and TV shooting locations"
	cli.Root().Version = "0.1.0"

	// spec subcommand: export OpenAPI spec
	specCmd := &cobra.Command{
		Use:   "spec",
		Short: "Export OpenAPI spec (JSON by default, --yaml for YAML)",
		Run: humacli.WithOptions(func(cmd *cobra.Command, args []string, opts *Options) {
			e, err := setup(opts)
			if err != nil {
				fail("%v", err)
			}
			e.cfg.Metrics = false
			e.cfg.Session.SweepInterval = 0
			srv, err := newServer(opts, e, kv.NewMemoryStore())
			if err != nil {
				fail("%v", err)
			}
			defer srv.Close()
			spec := srv.OpenAPI()

			useYAML, _ := cmd.Flags().GetBool("yaml")

			var output []byte
			if useYAML {
				output, err = yaml.Marshal(spec)
			} else {
				output, err = json.MarshalIndent(spec, "", "  ")
			}
			if err != nil {
				fail("marshaling spec: %v", err)
			}
			fmt.Println(string(output))
		}),
	}
	specCmd.Flags().BoolP("yaml", "y", false, "Output as YAML instead of JSON")
	cli.Root().AddCommand(specCmd)

	// locations subcommand: fetch, filter and print
	locationsCmd := &cobra.Command{
		Use:   "locations",
		Short: "Fetch locations from the content API and print them",
		Run: humacli.WithOptions(func(cmd *cobra.Command, args []string, opts *Options) {
			e, err := setup(opts)
			if err != nil {
				fail("%v", err)
			}
			q, err := queryFromFlags(cmd)
			if err != nil {
				fail("%v", err)
			}
			locs, err := e.content.FetchAll(cmd.Context(), content.FieldsFull)
			if err != nil {
				fail("%v", err)
			}
			printLocations(os.Stdout, q.apply(locs))
		}),
	}
	addQueryFlags(locationsCmd)
	locationsCmd.Flags().String("near", "", "Order by distance to lon,lat")
	locationsCmd.Flags().IntP("limit", "n", 10, "Result count with --near")
	cli.Root().AddCommand(locationsCmd)

	// export subcommand: write GeoJSON
	exportCmd := &cobra.Command{
		Use:   "export",
		Short: "Export locations as a GeoJSON FeatureCollection",
		Run: humacli.WithOptions(func(cmd *cobra.Command, args []string, opts *Options) {
			e, err := setup(opts)
			if err != nil {
				fail("%v", err)
			}
			q, err := queryFromFlags(cmd)
			if err != nil {
				fail("%v", err)
			}
			locs, err := e.content.FetchAll(cmd.Context(), content.FieldsFull)
			if err != nil {
				fail("%v", err)
			}
			raw, err := service.FeatureCollection(q.apply(locs)).MarshalJSON()
			if err != nil {
				fail("encoding GeoJSON: %v", err)
			}
			out, _ := cmd.Flags().GetString("output")
			if out == "" || out == "-" {
				fmt.Println(string(raw))
				return
			}
			if err := os.WriteFile(out, raw, 0o644); err != nil {
				fail("%v", err)
			}
			e.log.Info().Str("file", out).Msg("exported")
		}),
	}
	addQueryFlags(exportCmd)
	exportCmd.Flags().StringP("output", "o", "", "Output file (stdout by default)")
	cli.Root().AddCommand(exportCmd)

	cli.Run()
}

func addQueryFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("genre", "g", service.AllGenres, "Genre tag to keep")
	cmd.Flags().String("bbox", "", "Bounding box minLon,minLat,maxLon,maxLat")
}

// query is a location selection built from flags.
type query struct {
	genre string
	bbox  *orb.Bound
	near  *orb.Point
	limit int
}

func queryFromFlags(cmd *cobra.Command) (query, error) {
	q := query{}
	q.genre, _ = cmd.Flags().GetString("genre")
	if s, _ := cmd.Flags().GetString("bbox"); s != "" {
		b, err := geoindex.ParseBBox(s)
		if err != nil {
			return q, err
		}
		q.bbox = &b
	}
	if cmd.Flags().Lookup("near") != nil {
		if s, _ := cmd.Flags().GetString("near"); s != "" {
			p, err := parsePoint(s)
			if err != nil {
				return q, err
			}
			q.near = &p
		}
		q.limit, _ = cmd.Flags().GetInt("limit")
	}
	return q, nil
}

func parsePoint(s string) (orb.Point, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return orb.Point{}, fmt.Errorf("invalid point %q: want lon,lat", s)
	}
	lon, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return orb.Point{}, fmt.Errorf("invalid longitude %q", parts[0])
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return orb.Point{}, fmt.Errorf("invalid latitude %q", parts[1])
	}
	if lon < -180 || lon > 180 || lat < -90 || lat > 90 {
		return orb.Point{}, fmt.Errorf("point %q out of range", s)
	}
	return orb.Point{lon, lat}, nil
}

func (q query) apply(locs []service.Location) []service.Location {
	locs = service.FilterByGenre(locs, service.ParseGenre(q.genre))
	if q.bbox == nil && q.near == nil {
		return locs
	}
	idx := geoindex.New(locs)
	if q.bbox != nil {
		locs = idx.SearchBox(*q.bbox)
		idx = geoindex.New(locs)
	}
	if q.near != nil {
		locs = idx.Nearest(*q.near, q.limit)
	}
	return locs
}

func printLocations(w io.Writer, locs []service.Location) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SLUG\tTITLE\tFILM\tGENRE\tLON\tLAT")
	for _, l := range locs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%.4f\t%.4f\n",
			l.Slug, l.Title, l.FilmTitle, service.GenreLabel(l.Genre), l.Longitude, l.Latitude)
	}
	tw.Flush()
}
