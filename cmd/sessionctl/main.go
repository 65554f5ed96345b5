// Command sessionctl inspects and edits stored sessions. Edits go through the
// same merge engine the web tier uses, so they are safe to run against live
// sessions.
package main

import (
	"os"

	"github.com/sirupsen/logrus"
)

func main() {
	log := logrus.New()
	log.SetOutput(os.Stderr)
	if err := newRootCommand(newApp(log, os.Stdout)).Execute(); err != nil {
		log.WithError(err).Error("sessionctl failed")
		os.Exit(1)
	}
}
