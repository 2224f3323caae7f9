package main

import (
	"fmt"
	"math"
	"time"

	"github.com/couchcryptid/storm-hazard-routing/internal/domain"
)

// The mock data set is a 6x6 street grid over downtown Asheville, NC, with a
// morning of storm reports on 2024-09-27.
const (
	gridSize = 6
	gridLat0 = 35.57
	gridLon0 = -82.58
	gridStep = 0.01
)

var (
	rowNames = [gridSize]string{"Brevard Rd", "Biltmore Ave", "Patton Ave", "College St", "Merrimon Ave", "Weaverville Hwy"}
	colNames = [gridSize]string{"Haywood Rd", "Clingman Ave", "Lexington Ave", "Broadway St", "Charlotte St", "Tunnel Rd"}

	mockStart = time.Date(2024, time.September, 27, 10, 0, 0, 0, time.UTC)
)

func round6(f float64) float64 { return math.Round(f*1e6) / 1e6 }

func gridNode(r, c int) domain.Geo {
	return domain.Geo{Lat: round6(gridLat0 + float64(r)*gridStep), Lon: round6(gridLon0 + float64(c)*gridStep)}
}

func rowMid(r, c int) domain.Geo {
	return domain.Geo{Lat: round6(gridLat0 + float64(r)*gridStep), Lon: round6(gridLon0 + (float64(c)+0.5)*gridStep)}
}

func colMid(r, c int) domain.Geo {
	return domain.Geo{Lat: round6(gridLat0 + (float64(r)+0.5)*gridStep), Lon: round6(gridLon0 + float64(c)*gridStep)}
}

func jitter(g domain.Geo, dLat, dLon float64) domain.Geo {
	return domain.Geo{Lat: round6(g.Lat + dLat), Lon: round6(g.Lon + dLon)}
}

// mockNetwork returns the grid. Rows run west to east ("row-r-c"), columns
// south to north ("col-r-c"). Charlotte St is one-way northbound and one
// block of Tunnel Rd is damaged before any reports arrive.
func mockNetwork() []domain.RoadSegment {
	segments := make([]domain.RoadSegment, 0, 2*gridSize*(gridSize-1))
	for r := range gridSize {
		for c := range gridSize - 1 {
			segments = append(segments, domain.RoadSegment{
				ID:       fmt.Sprintf("row-%d-%d", r, c),
				Name:     rowNames[r],
				Highway:  "secondary",
				Geometry: []domain.Geo{gridNode(r, c), gridNode(r, c+1)},
			})
		}
	}
	for c := range gridSize {
		for r := range gridSize - 1 {
			seg := domain.RoadSegment{
				ID:       fmt.Sprintf("col-%d-%d", r, c),
				Name:     colNames[c],
				Highway:  "residential",
				Geometry: []domain.Geo{gridNode(r, c), gridNode(r+1, c)},
				OneWay:   c == 4,
			}
			if c == 5 {
				seg.Highway = "primary"
				if r == 2 {
					seg.BaseStatus = domain.StatusDamaged
				}
			}
			segments = append(segments, seg)
		}
	}
	return segments
}

// mockReports is in delivery order, which is not timestamp order: r-002 is
// redelivered and r-012 arrives after the clearance that supersedes it.
func mockReports() []domain.Report {
	rep := func(id string, minutes int, t domain.EventType, at domain.Geo, src domain.Source, conf float64, desc, addr string) domain.Report {
		return domain.Report{
			ID:          id,
			Timestamp:   mockStart.Add(time.Duration(minutes) * time.Minute),
			EventType:   t,
			Location:    domain.Location{Lat: at.Lat, Lon: at.Lon, Address: addr},
			Description: desc,
			Source:      src,
			Confidence:  conf,
		}
	}
	pattonAtClingman := jitter(rowMid(2, 1), 0.0003, -0.0002)
	return []domain.Report{
		rep("r-001", 0, domain.EventRoadClosure, rowMid(2, 1), domain.SourceTwitter, 0.6, "Trees down across Patton Ave", ""),
		rep("r-002", 20, domain.EventRoadClosure, pattonAtClingman, domain.SourceNCDOT, 0.9, "Patton Ave closed at Clingman Ave", "Patton Ave, Asheville, NC"),
		rep("r-003", 25, domain.EventFlooding, colMid(1, 3), domain.SourceUSGS, 0.8, "French Broad gauge above flood stage, water over Broadway St", ""),
		rep("r-004", 30, domain.EventRoadDamage, rowMid(3, 2), domain.SourceCitizen, 0.5, "Pavement washout on College St", ""),
		rep("r-005", 35, domain.EventBridgeCollapse, colMid(0, 2), domain.SourceSatellite, 0.85, "Lexington Ave bridge deck missing", ""),
		rep("r-006", 40, domain.EventShelterOpening, gridNode(3, 3), domain.SourceLocalEmergency, 1.0, "Shelter open at the civic center", ""),
		rep("r-007", 45, domain.EventPowerOutage, rowMid(4, 3), domain.SourceFEMA, 0.7, "Substation offline", ""),
		rep("r-002", 20, domain.EventRoadClosure, pattonAtClingman, domain.SourceNCDOT, 0.9, "Patton Ave closed at Clingman Ave", "Patton Ave, Asheville, NC"),
		rep("r-011", 50, domain.EventRescueNeeded, jitter(gridNode(1, 1), 0.002, 0.002), domain.SourceReddit, 0.4, "Family stranded on roof", ""),
		rep("r-008", 180, domain.EventRoadClear, rowMid(2, 1), domain.SourceNCDOT, 0.95, "Patton Ave reopened after crews cleared debris", ""),
		rep("r-012", 120, domain.EventRoadClosure, jitter(rowMid(2, 1), -0.0002, 0.0001), domain.SourceTwitter, 0.5, "Patton Ave still blocked?", ""),
		rep("r-009", 190, domain.EventRoadClosure, colMid(3, 4), domain.SourceNews, 0.7, "Charlotte St closed for downed power lines", ""),
		rep("r-010", 240, domain.EventRoadDamage, jitter(rowMid(3, 2), 0.0002, 0), domain.SourceTwitter, 0.6, "Big crack on College St", ""),
	}
}
