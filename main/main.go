package main

import (
	"flag"
	"log"

	"github.com/utajum/gmail-notifier/notifier"
)

func main() {
	pforce := flag.Bool("force", false,
		"Start even if a (possibly stale) instance lock exists")

	flag.Parse()

	release, err := notifier.AcquireLock(*pforce)
	if err != nil {
		log.Fatalf("%v (use -force if you are sure it is not)", err)
	}

	settings, err := notifier.LoadSettings()
	if err != nil {
		log.Printf("Settings file unusable, continuing with defaults: %v", err)
	}

	// log.Fatal exits without running deferreds, so release the lock first.
	err = notifier.RunServer(settings)
	release()
	log.Fatal(err)
}
