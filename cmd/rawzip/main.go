package main

import (
	"log"

	"github.com/nguyengg/rawzip/internal/cmd"
)

func main() {
	p, err := cmd.NewParser()
	if err != nil {
		log.Fatalf("create parser error: %v", err)
	}

	_, err = p.Parse()
	exit(err)
}
