package main

import (
	"log"
	"os"
)

func main() {
	if err := createCliApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
