package domain

// Api levels rank student maturity from 1 (lowest) to 4 (highest). The
// computed level follows verified work hours and completed projects; the
// persisted level only ever moves up automatically.
const (
	MinApiLevel = 1
	MaxApiLevel = 4

	MinTrl = 1
	MaxTrl = 9
)

// ComputedApiLevel derives a student's api level from verified hours and
// completed projects. Either condition of a row is enough to reach it.
func ComputedApiLevel(totalHours float64, completedProjects int) int {
	switch {
	case totalHours >= 80 || completedProjects >= 3:
		return 4
	case totalHours >= 40 || completedProjects >= 2:
		return 3
	case totalHours >= 20 || completedProjects >= 1:
		return 2
	default:
		return 1
	}
}

// MaxTrlForApiLevel returns the highest project TRL a student of the given
// api level may see and apply to.
func MaxTrlForApiLevel(apiLevel int) int {
	switch apiLevel {
	case 1:
		return 2
	case 2:
		return 4
	case 3:
		return 6
	default:
		return 9
	}
}
