package main

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/bioimagetools/roimask/mask"
)

// ReadPoints loads a whitespace-separated "x y z" point list, one voxel per
// line.  Blank lines and lines starting with '#' are skipped.
func ReadPoints(path string) ([]mask.Point3d, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var pts []mask.Point3d
	scanner := bufio.NewScanner(f)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) != 3 {
			return nil, fmt.Errorf("%s:%d: expected 3 coordinates, got %d", path, lineNum, len(fields))
		}
		var p mask.Point3d
		for i, field := range fields {
			v, err := strconv.ParseInt(field, 10, 32)
			if err != nil {
				return nil, fmt.Errorf("%s:%d: bad coordinate %q: %v", path, lineNum, field, err)
			}
			p[i] = int32(v)
		}
		pts = append(pts, p)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return pts, nil
}
