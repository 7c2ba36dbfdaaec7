package domain

// TaskFromRow maps a remote row to the UI task, dropping ownership and
// timestamp fields.
func TaskFromRow(r Row) Task {
	return Task{
		ID:   r.ID,
		Text: r.Todo,
		Done: r.IsDone,
	}
}

// TasksFromRows maps rows preserving their order.
func TasksFromRows(rows []Row) []Task {
	tasks := make([]Task, 0, len(rows))
	for _, r := range rows {
		tasks = append(tasks, TaskFromRow(r))
	}
	return tasks
}

// RowFromTask builds the insert payload for a task. Ownership is always null.
func RowFromTask(t Task) NewRow {
	return NewRow{
		UserID: nil,
		Todo:   t.Text,
		IsDone: t.Done,
	}
}
