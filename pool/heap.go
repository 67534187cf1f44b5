package pool

// workQueue is a max-heap over work item priority. It deliberately carries
// no arrival sequence: only relative priority is guaranteed, not FIFO order
// within a tier.
type workQueue []workItem

func (q workQueue) Len() int            { return len(q) }
func (q workQueue) Less(i, j int) bool  { return q[i].priority > q[j].priority }
func (q workQueue) Swap(i, j int)       { q[i], q[j] = q[j], q[i] }
func (q *workQueue) Push(x interface{}) { *q = append(*q, x.(workItem)) }

func (q *workQueue) Pop() interface{} {
	old := *q
	n := len(old)
	item := old[n-1]
	old[n-1] = workItem{}
	*q = old[:n-1]
	return item
}
