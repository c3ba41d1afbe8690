package routes

import (
	"regexp"
	"strconv"

	"github.com/pkg/errors"
	"github.com/zond/ticktrace/structs"
)

var (
	zonePattern = regexp.MustCompile(`^([WE])(\d+)([NS])(\d+)$`)
)

// ZoneCoords converts a world zone name like W3N12 into grid coordinates.
// West and north are negative, and W0 sits directly west of E0.
func ZoneCoords(zone string) (int, int, error) {
	match := zonePattern.FindStringSubmatch(zone)
	if match == nil {
		return 0, 0, errors.Wrapf(ErrUnknownZone, "%q is not a world zone name", zone)
	}
	x, err := strconv.Atoi(match[2])
	if err != nil {
		return 0, 0, errors.WithStack(err)
	}
	y, err := strconv.Atoi(match[4])
	if err != nil {
		return 0, 0, errors.WithStack(err)
	}
	if match[1] == "W" {
		x = -x - 1
	}
	if match[3] == "N" {
		y = -y - 1
	}
	return x, y, nil
}

func abs(i int) int {
	if i < 0 {
		return -i
	}
	return i
}

// GridDistance is the straight line zone distance, ignoring walls: the
// larger of the horizontal and vertical offsets.
func GridDistance(from, to string) (structs.Distance, error) {
	fx, fy, err := ZoneCoords(from)
	if err != nil {
		return 0, err
	}
	tx, ty, err := ZoneCoords(to)
	if err != nil {
		return 0, err
	}
	return structs.Distance(max(abs(fx-tx), abs(fy-ty))), nil
}
