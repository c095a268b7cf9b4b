package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"time"

	"github.com/alitto/pond"
	"github.com/urfave/cli/v2"

	gmos "github.com/sixy6e/go-gmos"
)

// plan_obs handles the planning process for a single observation
// request file: build the generator, emit the acquisition and science
// sequences as JSON, optionally as a TileDB array, and report the
// execution digest.
func plan_obs(obs_uri, config_uri, outdir_uri string, tdb bool) error {
	var out_uri string

	dir, file := filepath.Split(obs_uri)
	if outdir_uri == "" {
		outdir_uri = dir
	}

	log.Println("Processing observation request:", obs_uri)
	src, err := gmos.OpenObs(obs_uri, config_uri)
	if err != nil {
		return err
	}
	defer src.Close()

	request, err := src.Request()
	if err != nil {
		return err
	}

	generator, err := request.Generator()
	if err != nil {
		return err
	}

	now := time.Now().UTC()

	log.Println("Planning science sequence")
	science := generator.Science.Generate(now).Collect()

	log.Println("Planning acquisition sequence")
	acquisition := generator.Acquisition.Generate(now).Take(2)

	log.Println("Writing sequences")
	out_uri = filepath.Join(outdir_uri, file+"-sequence.json")
	_, err = gmos.WriteJson(out_uri, config_uri, map[string]any{
		"observation_id": request.ObservationID,
		"acquisition":    acquisition,
		"science":        science,
	})
	if err != nil {
		return err
	}

	log.Println("Writing digest")
	digest := gmos.CachedDigest(generator, now)
	out_uri = filepath.Join(outdir_uri, file+"-digest.json")
	_, err = gmos.WriteJson(out_uri, config_uri, digest)
	if err != nil {
		return err
	}

	if tdb && len(science) > 0 {
		log.Println("Writing science sequence TileDB array")
		md := gmos.NewPlanMetadata(generator, science, now)
		out_uri = filepath.Join(outdir_uri, file+"-sequence.tiledb")
		err = gmos.WriteSequence(out_uri, config_uri, science, md)
		if err != nil {
			return err
		}
	}

	log.Println("Finished observation:", request.ObservationID)

	return nil
}

// plan_obs_list is responsible for submitting a list of observation
// request files to a processing pool that plans each one. The pool uses
// 2 * n_CPUs workers to spread the work across.
func plan_obs_list(uri, config_uri, outdir_uri string, tdb bool) error {
	log.Println("Searching uri:", uri)
	items, err := gmos.FindObs(uri, config_uri)
	if err != nil {
		return err
	}
	log.Println("Number of observation requests to process:", len(items))

	// Cancelled when the user presses Ctrl+C (process receives termination signal).
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	// fixed pool
	n := runtime.NumCPU() * 2
	pool := pond.New(n, 0, pond.MinWorkers(n), pond.Context(ctx))
	defer pool.StopAndWait()

	for _, name := range items {
		item_uri := name
		pool.Submit(func() {
			err := plan_obs(item_uri, config_uri, outdir_uri, tdb)
			if err != nil {
				log.Println("Error planning:", item_uri, err)
			}
		})
	}

	return nil
}

// print_digest reports only the execution digest for a request.
func print_digest(obs_uri, config_uri string) error {
	src, err := gmos.OpenObs(obs_uri, config_uri)
	if err != nil {
		return err
	}
	defer src.Close()

	request, err := src.Request()
	if err != nil {
		return err
	}

	generator, err := request.Generator()
	if err != nil {
		return err
	}

	digest := gmos.ComputeDigest(generator, time.Now().UTC())
	jsn, err := gmos.JsonIndentDumps(digest)
	if err != nil {
		return err
	}

	log.Println(jsn)

	return nil
}

func main() {
	app := &cli.App{
		Commands: []*cli.Command{
			&cli.Command{
				Name: "plan",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "obs-uri",
						Usage: "URI or pathname to an observation request file.",
					},
					&cli.StringFlag{
						Name:  "config-uri",
						Usage: "URI or pathname to a TileDB config file.",
					},
					&cli.StringFlag{
						Name:  "outdir-uri",
						Usage: "URI or pathname to an output directory.",
					},
					&cli.BoolFlag{
						Name:  "tiledb",
						Usage: "Also write the science sequence as a TileDB array.",
					},
				},
				Action: func(cCtx *cli.Context) error {
					err := plan_obs(cCtx.String("obs-uri"), cCtx.String("config-uri"), cCtx.String("outdir-uri"), cCtx.Bool("tiledb"))
					return err
				},
			},
			&cli.Command{
				Name: "plan-trawl",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "uri",
						Usage: "URI or pathname to a directory containing observation request files.",
					},
					&cli.StringFlag{
						Name:  "config-uri",
						Usage: "URI or pathname to a TileDB config file.",
					},
					&cli.StringFlag{
						Name:  "outdir-uri",
						Usage: "URI or pathname to an output directory.",
					},
					&cli.BoolFlag{
						Name:  "tiledb",
						Usage: "Also write the science sequences as TileDB arrays.",
					},
				},
				Action: func(cCtx *cli.Context) error {
					err := plan_obs_list(cCtx.String("uri"), cCtx.String("config-uri"), cCtx.String("outdir-uri"), cCtx.Bool("tiledb"))
					return err
				},
			},
			&cli.Command{
				Name: "digest",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "obs-uri",
						Usage: "URI or pathname to an observation request file.",
					},
					&cli.StringFlag{
						Name:  "config-uri",
						Usage: "URI or pathname to a TileDB config file.",
					},
				},
				Action: func(cCtx *cli.Context) error {
					err := print_digest(cCtx.String("obs-uri"), cCtx.String("config-uri"))
					return err
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
