package slurm

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"k8s.io/apimachinery/pkg/api/resource"
)

var (
	ErrInvalidMemory = errors.New("invalid memory quantity")
	ErrInvalidTime   = errors.New("invalid time limit")
)

// Resources are what a job asks to the scheduler.
type Resources struct {
	Nodes         int
	NTasksPerNode int
	CPUsPerTask   int

	// tasks are distributed with "plane=<Plane>" when it is positive.
	Plane int

	// memory per node
	Memory resource.Quantity

	// time limit. Zero means the partition default.
	Time time.Duration

	Partition   string
	Account     string
	Reservation string
	Exclude     string
}

// Tasks is the number of tasks in total.
func (r Resources) Tasks() int {
	return r.Nodes * r.NTasksPerNode
}

var gibi = resource.MustParse("1Gi")

// ParseMemory reads a memory quantity.
//
// A bare number is in GiB (`232` is 232Gi). Otherwise it is a quantity like "500Mi" or "64G".
func ParseMemory(s string) (resource.Quantity, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return resource.Quantity{}, fmt.Errorf("%w: empty", ErrInvalidMemory)
	}
	if _, err := strconv.ParseFloat(s, 64); err == nil {
		s += "Gi"
	}
	q, err := resource.ParseQuantity(s)
	if err != nil {
		return resource.Quantity{}, fmt.Errorf("%w: %s", ErrInvalidMemory, s)
	}
	if q.Sign() <= 0 {
		return resource.Quantity{}, fmt.Errorf("%w: not positive: %s", ErrInvalidMemory, s)
	}
	return q, nil
}

// FormatMemory renders a quantity for sbatch --mem.
//
// Whole GiB are written as "<n>G", others in MiB (rounded up) as "<n>M".
func FormatMemory(q resource.Quantity) string {
	b := q.Value()
	gi := gibi.Value()
	if b%gi == 0 {
		return fmt.Sprintf("%dG", b/gi)
	}
	mi := int64(1 << 20)
	return fmt.Sprintf("%dM", (b+mi-1)/mi)
}

// ParseTime reads a time limit in one of the forms sbatch accepts:
// "minutes", "MM:SS", "HH:MM:SS", "D-HH", "D-HH:MM" and "D-HH:MM:SS".
func ParseTime(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("%w: empty", ErrInvalidTime)
	}
	invalid := func() (time.Duration, error) {
		return 0, fmt.Errorf("%w: %s", ErrInvalidTime, s)
	}

	days := 0
	rest := s
	hasDays := false
	if d, r, ok := strings.Cut(s, "-"); ok {
		n, err := strconv.Atoi(d)
		if err != nil || n < 0 {
			return invalid()
		}
		days, rest, hasDays = n, r, true
	}

	parts := strings.Split(rest, ":")
	nums := make([]int, 0, len(parts))
	for _, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 {
			return invalid()
		}
		nums = append(nums, n)
	}

	var h, m, sec int
	switch {
	case hasDays && len(nums) == 1:
		h = nums[0]
	case hasDays && len(nums) == 2:
		h, m = nums[0], nums[1]
	case len(nums) == 3:
		h, m, sec = nums[0], nums[1], nums[2]
	case !hasDays && len(nums) == 1:
		m = nums[0]
	case !hasDays && len(nums) == 2:
		m, sec = nums[0], nums[1]
	default:
		return invalid()
	}

	d := time.Duration(days)*24*time.Hour +
		time.Duration(h)*time.Hour +
		time.Duration(m)*time.Minute +
		time.Duration(sec)*time.Second
	if d <= 0 {
		return invalid()
	}
	return d, nil
}

// FormatTime renders a duration as "HH:MM:SS", or "D-HH:MM:SS" for a day or longer.
func FormatTime(d time.Duration) string {
	total := int64(d.Round(time.Second) / time.Second)
	days := total / 86400
	h := (total % 86400) / 3600
	m := (total % 3600) / 60
	s := total % 60
	if days > 0 {
		return fmt.Sprintf("%d-%02d:%02d:%02d", days, h, m, s)
	}
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}
