package vfs

// OpKind identifies a queued persistence mutation.
type OpKind string

const (
	OpPutFile      OpKind = "put_file"
	OpPutFolder    OpKind = "put_folder"
	OpDeleteFile   OpKind = "delete_file"
	OpDeleteFolder OpKind = "delete_folder"
)

// Mutation is one pending persistence delta: the operation kind plus a
// snapshot of the content as it was when the mutation was recorded.
type Mutation struct {
	Kind     OpKind
	Path     string
	Content  []byte
	IsBinary bool
}

// Journal is the ordered log of mutations applied to the tree but not
// yet flushed to the durable store. It is deliberately a first-class
// structure, distinct from the tree snapshot: flush replays it in order,
// clears only what succeeded, and whatever survives a partial failure
// stays queued for the next attempt.
//
// Journal is not safe for concurrent use; the facade serializes access.
type Journal struct {
	ops []Mutation
}

// NewJournal creates an empty journal.
func NewJournal() *Journal {
	return &Journal{}
}

// Append records a mutation at the tail of the log.
func (j *Journal) Append(m Mutation) {
	j.ops = append(j.ops, m)
}

// Len returns the number of pending mutations.
func (j *Journal) Len() int {
	return len(j.ops)
}

// Snapshot returns a copy of the pending mutations in order.
func (j *Journal) Snapshot() []Mutation {
	out := make([]Mutation, len(j.ops))
	copy(out, j.ops)
	return out
}

// Ack drops the first n mutations, which the flush persisted
// successfully. Mutations appended while the flush was in flight stay
// behind them and are untouched.
func (j *Journal) Ack(n int) {
	if n >= len(j.ops) {
		j.ops = j.ops[:0]
		return
	}
	j.ops = append(j.ops[:0], j.ops[n:]...)
}
