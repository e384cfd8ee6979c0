package api

type (
	// CreateRunRequest starts a new run for a job
	CreateRunRequest struct {
		Job string `json:"job"`
	}

	// SetPropertyRequest carries a value and its optional type tag. Without
	// a tag the kind is inferred from the JSON value
	SetPropertyRequest struct {
		Value        any  `json:"value"`
		Type         Kind `json:"type,omitempty"`
		OnlyIfAbsent bool `json:"only_if_absent,omitempty"`
	}

	// SetPropertyResponse reports the value replaced by a set
	SetPropertyResponse struct {
		Previous *Property `json:"previous,omitempty"`
		Property Property  `json:"property"`
		Changed  bool      `json:"changed"`
	}

	// TestCase is one test result reported to the test-count endpoint
	TestCase struct {
		ClassName string `json:"class_name"`
		Name      string `json:"name,omitempty"`
		Age       int    `json:"age,omitempty"`
	}

	// TestResults is the set of passed and failed cases of a run
	TestResults struct {
		Passed []TestCase `json:"passed"`
		Failed []TestCase `json:"failed"`
	}

	// TestCountsRequest derives pass/fail counts and stores them as
	// properties under KeyPrefix
	TestCountsRequest struct {
		Results      TestResults `json:"results"`
		KeyPrefix    string      `json:"key_prefix"`
		Include      string      `json:"include,omitempty"`
		Exclude      string      `json:"exclude,omitempty"`
		OnlyIfAbsent bool        `json:"only_if_absent,omitempty"`
	}

	// WaitRequest starts a wait for a set of keys on a run
	WaitRequest struct {
		Keys    []string `json:"keys"`
		Unit    string   `json:"unit,omitempty"`
		Timeout int64    `json:"timeout"`
	}

	// ChangeEvent is streamed to change-feed subscribers after a property
	// of a run changes
	ChangeEvent struct {
		Old   *PropertyValue `json:"old,omitempty"`
		New   PropertyValue  `json:"new"`
		RunID RunID          `json:"run_id"`
		Key   string         `json:"key"`
	}

	// SubscribeRequest narrows the change feed to a set of runs
	SubscribeRequest struct {
		Type   string  `json:"type"`
		RunIDs []RunID `json:"run_ids,omitempty"`
	}

	// SubscribedResult acknowledges a change-feed subscription
	SubscribedResult struct {
		Type   string  `json:"type"`
		RunIDs []RunID `json:"run_ids,omitempty"`
	}

	// HealthResponse reports service liveness
	HealthResponse struct {
		Service string `json:"service"`
		Version string `json:"version"`
		Status  string `json:"status"`
	}

	// MessageResponse contains a simple message string
	MessageResponse struct {
		Message string `json:"message"`
	}

	// ErrorResponse contains error details for failed requests
	ErrorResponse struct {
		Error  string `json:"error"`
		Status int    `json:"status,omitempty"`
	}
)
