// Package pelitrack attaches GPS tracks to static-site articles and renders
// a Leaflet map for each of them.
//
// # Quick Start
//
// A generator host creates a Plugin and calls its hooks in order:
//
//	p, err := pelitrack.New(pelitrack.DefaultSettings(),
//	    pelitrack.WithLogger(logger),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := p.Initialize(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	_ = p.ProcessArticles(ctx, articles, drafts, translations)
//	if err := p.CopyAssets(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	if err := p.Finalize(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
// # Track Metadata
//
// An article opts in with a "track" metadata value:
//
//	track: rides/2024-05-01.fit;garmin_fit;height=>300px;provider=>+Esri.WorldImagery
//
// The first element is the source file, the second the GPSBabel input
// format. Further key=>value elements override the site settings for this
// article only. A provider value starting with "+" appends to the site
// providers; otherwise it replaces them.
//
// # Pipeline
//
//  1. Parse the directive and merge it with the site settings
//  2. Convert the source with gpsbabel (or copy it verbatim)
//  3. Publish <gpx_output_path>/<slug>.gpx and set Article.Track
//  4. Copy the leaflet-gpx pin icons into the output root
//  5. Minify the written GPX files, if enabled
//
// RenderHead and RenderWidget produce the HTML the page templates embed.
// InjectTrack places both into an already rendered page.
//
// # Parallel Processing
//
// ProcessArticle is safe for concurrent use after Initialize. Map previews
// are captured with headless Chrome through a SnapshotPool:
//
//	pool := pelitrack.NewSnapshotPool(pelitrack.ResolvePoolSize(0), nil)
//	defer pool.Close()
//
//	err := pool.Do(ctx, func(s pelitrack.Snapshotter) error {
//		_, err := pelitrack.WriteSnapshot(ctx, s, "output/ride.html", article)
//		return err
//	})
package pelitrack
