package domain

import (
	"reflect"
	"testing"
)

func TestPartitionMovesDoneToEndStably(t *testing.T) {
	in := []Task{
		{ID: "1", Done: true},
		{ID: "2"},
		{ID: "3", Done: true},
		{ID: "4"},
	}
	got := Partition(in)
	want := []Task{{ID: "2"}, {ID: "4"}, {ID: "1", Done: true}, {ID: "3", Done: true}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Partition() = %#v, want %#v", got, want)
	}
	if !Ordered(got) {
		t.Fatalf("partitioned list is not ordered")
	}
	if in[0].ID != "1" {
		t.Fatalf("Partition must not reorder its input")
	}
}

func TestOrdered(t *testing.T) {
	tests := []struct {
		name  string
		tasks []Task
		want  bool
	}{
		{name: "empty", want: true},
		{name: "all open", tasks: []Task{{ID: "1"}, {ID: "2"}}, want: true},
		{name: "done last", tasks: []Task{{ID: "1"}, {ID: "2", Done: true}}, want: true},
		{name: "open after done", tasks: []Task{{ID: "1", Done: true}, {ID: "2"}}, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Ordered(tt.tasks); got != tt.want {
				t.Fatalf("Ordered() = %v, want %v", got, tt.want)
			}
		})
	}
}
