package engine

import "testing"

func TestInferRetrievalIntent(t *testing.T) {
	tests := []struct {
		query string
		want  RetrievalIntent
	}{
		{"help me debug the deploy pipeline", IntentWork},
		{"帮我看看这个项目的方案", IntentWork},
		{"how to write table driven tests", IntentLearning},
		{"the service threw an error and went down", IntentIncident},
		{"报错了，好像宕机了", IntentIncident},
		{"what is my preference for replies", IntentProfile},
		{"随便聊聊吧", IntentChat},
		{"hello there", IntentChat},
	}
	for _, tt := range tests {
		if got := InferRetrievalIntent(tt.query); got != tt.want {
			t.Errorf("InferRetrievalIntent(%q) = %s, want %s", tt.query, got, tt.want)
		}
	}
}

func TestInferRetrievalIntent_IncidentBeatsWork(t *testing.T) {
	// Query matching both incident and work hints resolves to incident.
	if got := InferRetrievalIntent("fix the deploy error incident"); got != IntentIncident {
		t.Errorf("incident hints should dominate, got %s", got)
	}
}

func TestBuildRetrievalPlan_Work(t *testing.T) {
	plan := BuildRetrievalPlan("need to fix the roadmap task", PlannerOptions{})
	if plan.Intent != IntentWork {
		t.Fatalf("intent %s, want work", plan.Intent)
	}
	if plan.TopK != 10 {
		t.Errorf("work topK %d, want 10", plan.TopK)
	}
	wantPrefixes := map[string]bool{"mory://task/": false, "mory://skill/": false}
	for _, p := range plan.PathPrefixes {
		if _, ok := wantPrefixes[p]; ok {
			wantPrefixes[p] = true
		}
	}
	for prefix, seen := range wantPrefixes {
		if !seen {
			t.Errorf("work plan missing prefix %s", prefix)
		}
	}
}

func TestBuildRetrievalPlan_ChatFallback(t *testing.T) {
	plan := BuildRetrievalPlan("good morning", PlannerOptions{})
	if plan.Intent != IntentChat {
		t.Fatalf("intent %s, want chat", plan.Intent)
	}
	if plan.TopK != 6 {
		t.Errorf("chat topK %d, want 6", plan.TopK)
	}
	if len(plan.MemoryTypes) == 0 || len(plan.PathPrefixes) == 0 {
		t.Error("chat plan must still scope types and prefixes")
	}
}

func TestBuildRetrievalPlan_CustomBudgets(t *testing.T) {
	plan := BuildRetrievalPlan("how to use generics, best practice", PlannerOptions{DefaultTopK: 4})
	if plan.Intent != IntentLearning {
		t.Fatalf("intent %s, want learning", plan.Intent)
	}
	if plan.TopK != 4 {
		t.Errorf("custom default topK %d, want 4", plan.TopK)
	}
}
