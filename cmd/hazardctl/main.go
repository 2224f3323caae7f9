// Command hazardctl works with road network and report files offline: it
// replays reports through the engine, plans routes against the result,
// validates fixtures, and generates the mock data set.
//
// Usage:
//
//	go run ./cmd/hazardctl replay --network data/mock/network.geojson --reports data/mock/reports.json
//	go run ./cmd/hazardctl route --from 35.57,-82.58 --to 35.62,-82.53
//	go run ./cmd/hazardctl validate
//	go run ./cmd/hazardctl gen --out-dir data/mock
package main

import "os"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
