package history

// DefaultSampleTarget is the number of points a chart can draw without slowing down
const DefaultSampleTarget = 500

// Sample reduces points to roughly target entries by keeping every n-th one.
// The last point is always kept so the chart ends on the latest value.
func Sample(points []DataPoint, target int) []DataPoint {
	if target <= 0 {
		target = DefaultSampleTarget
	}
	if len(points) <= target {
		return points
	}

	step := (len(points) + target - 1) / target
	out := make([]DataPoint, 0, target+1)
	for i := 0; i < len(points); i += step {
		out = append(out, points[i])
	}
	if (len(points)-1)%step != 0 {
		out = append(out, points[len(points)-1])
	}
	return out
}

// FilterTechnicalStops drops points recorded while the plant was offline
func FilterTechnicalStops(points []DataPoint) []DataPoint {
	out := make([]DataPoint, 0, len(points))
	for _, p := range points {
		if !p.IsTechnicalStop {
			out = append(out, p)
		}
	}
	return out
}
