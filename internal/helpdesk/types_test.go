package helpdesk

import "testing"

func validTicketRequest() TicketRequest {
	return TicketRequest{
		PatientDocument: "45678123",
		Motive:          MotiveConnectivity,
		Description:     "La videollamada se corta cada pocos minutos",
		Facility:        "CAP-III-Surquillo",
	}
}

func TestTicketRequestValidate(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(*TicketRequest)
		wantCode string
	}{
		{
			name:   "valid request passes",
			mutate: func(r *TicketRequest) {},
		},
		{
			name:     "missing patient document fails",
			mutate:   func(r *TicketRequest) { r.PatientDocument = "" },
			wantCode: "VALIDATION_ERROR",
		},
		{
			name:     "malformed patient document fails",
			mutate:   func(r *TicketRequest) { r.PatientDocument = "123" },
			wantCode: "VALIDATION_ERROR",
		},
		{
			name:     "unknown motive fails",
			mutate:   func(r *TicketRequest) { r.Motive = "motivo_inventado" },
			wantCode: "VALIDATION_ERROR",
		},
		{
			name:     "empty description fails",
			mutate:   func(r *TicketRequest) { r.Description = "" },
			wantCode: "VALIDATION_ERROR",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := validTicketRequest()
			tt.mutate(&req)

			appErr := req.Validate()
			if tt.wantCode == "" {
				if appErr != nil {
					t.Fatalf("expected valid request, got %v", appErr)
				}
				return
			}
			if appErr == nil {
				t.Fatal("expected validation error, got nil")
			}
			if appErr.Code != tt.wantCode {
				t.Errorf("expected code %s, got %s", tt.wantCode, appErr.Code)
			}
		})
	}
}

func TestTicketRequestAcceptsForeignerID(t *testing.T) {
	req := validTicketRequest()
	req.PatientDocument = "C12345678"

	if appErr := req.Validate(); appErr != nil {
		t.Fatalf("expected foreigner ID to validate, got %v", appErr)
	}
}
