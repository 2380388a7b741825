package main

import (
	"flag"
	"log"
	"os"

	"github.com/EmpoweredVote/appellations-backend/internal/maintenance"
	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load(".env.local")

	var (
		dir         = flag.String("dir", "", "directory of per-parcel .geojson files")
		index       = flag.String("index", "data/parcelles-index.json", "catalog document to update")
		base        = flag.String("base", "", "geojsonPath prefix, e.g. delimitation_aoc/21/21464")
		departement = flag.String("departement", "21", "department code for the new entries")
		dbURL       = flag.String("db", os.Getenv("DATABASE_URL"), "DATABASE_URL; also upsert into Postgres when set")
		dryRun      = flag.Bool("dry-run", false, "report changes without writing")
	)
	flag.Parse()

	if *dir == "" || *base == "" {
		flag.Usage()
		os.Exit(2)
	}

	res, err := maintenance.Run(maintenance.Config{
		Dir:          *dir,
		IndexPath:    *index,
		RelativeBase: *base,
		Departement:  *departement,
		DatabaseURL:  *dbURL,
		DryRun:       *dryRun,
	})
	if err != nil {
		log.Fatal(err)
	}
	log.Printf("done: added=%d updated=%d skipped=%d", res.Added, res.Updated, res.Skipped)
}
