package physical

import "fmt"

// PartitioningScheme represents how the output rows of an operator are
// distributed across its partitions.
type PartitioningScheme uint32

const (
	// PartitioningUnknown means rows are spread over a known number of
	// partitions with no particular distribution guarantee.
	PartitioningUnknown PartitioningScheme = iota

	// PartitioningSingle means all rows are produced by a single partition.
	PartitioningSingle

	// PartitioningHash means rows are distributed by the hash of a set of
	// column expressions.
	PartitioningHash
)

// String returns the string representation of the [PartitioningScheme].
func (s PartitioningScheme) String() string {
	switch s {
	case PartitioningUnknown:
		return "Unknown"
	case PartitioningSingle:
		return "Single"
	case PartitioningHash:
		return "Hash"
	default:
		return fmt.Sprintf("PartitioningScheme(%d)", s)
	}
}

// Partitioning describes the output partitioning of an operator. It is an
// immutable value; operators that do not redistribute rows propagate their
// child's partitioning unchanged.
type Partitioning struct {
	scheme     PartitioningScheme
	partitions int
	columns    []Expression
}

// UnknownPartitioning returns a partitioning of n partitions with no
// distribution guarantee.
func UnknownPartitioning(n int) Partitioning {
	return Partitioning{scheme: PartitioningUnknown, partitions: n}
}

// SinglePartitioning returns the partitioning of an operator producing all
// rows in one partition.
func SinglePartitioning() Partitioning {
	return Partitioning{scheme: PartitioningSingle, partitions: 1}
}

// HashPartitioning returns a partitioning of n partitions keyed by the hash
// of the given column expressions.
func HashPartitioning(columns []Expression, n int) Partitioning {
	return Partitioning{scheme: PartitioningHash, partitions: n, columns: columns}
}

// Scheme returns the partitioning scheme.
func (p Partitioning) Scheme() PartitioningScheme {
	return p.scheme
}

// PartitionCount returns the number of partitions rows are distributed over.
func (p Partitioning) PartitionCount() int {
	return p.partitions
}

// Columns returns the column expressions a hash partitioning is keyed by. It
// returns nil for non-hash schemes.
func (p Partitioning) Columns() []Expression {
	return p.columns
}

// String returns the string representation of the partitioning.
func (p Partitioning) String() string {
	if p.scheme == PartitioningHash {
		return fmt.Sprintf("%s(%d, %v)", p.scheme, p.partitions, p.columns)
	}
	return fmt.Sprintf("%s(%d)", p.scheme, p.partitions)
}
