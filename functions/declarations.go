package functions

import "google.golang.org/genai"

// Function names exposed to the dialogue model.
const (
	LookupCustomer       = "lookup_customer"
	CheckAvailability    = "check_availability"
	ConsultPolicy        = "consult_policy"
	SubmitBookingRequest = "submit_booking_request"
)

func stringParam(description string) *genai.Schema {
	return &genai.Schema{Type: genai.TypeString, Description: description}
}

// LookupCustomerDeclaration identifies the caller.
func LookupCustomerDeclaration() *genai.FunctionDeclaration {
	return &genai.FunctionDeclaration{
		Name:        LookupCustomer,
		Description: "Search for a customer profile by name or phone number. Returns the customer's name, vehicle and phone.",
		Parameters: &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"identifier": stringParam("The caller's full name or phone number as spoken."),
			},
			Required: []string{"identifier"},
		},
	}
}

// CheckAvailabilityDeclaration checks whether a date may still have capacity.
func CheckAvailabilityDeclaration() *genai.FunctionDeclaration {
	return &genai.FunctionDeclaration{
		Name:        CheckAvailability,
		Description: "Check if a date is potentially available for service. Availability is not guaranteed until validated by the manager.",
		Parameters: &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"date": stringParam("Requested date in YYYY-MM-DD format."),
			},
			Required: []string{"date"},
		},
	}
}

// ConsultPolicyDeclaration searches the dealership policy knowledge base.
func ConsultPolicyDeclaration() *genai.FunctionDeclaration {
	return &genai.FunctionDeclaration{
		Name:        ConsultPolicy,
		Description: "Search the knowledge base for dealership policies, e.g. 'is an oil change included?'.",
		Parameters: &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"topic": stringParam("The policy question or topic."),
			},
			Required: []string{"topic"},
		},
	}
}

// SubmitBookingRequestDeclaration submits a request to the approval queue.
func SubmitBookingRequestDeclaration() *genai.FunctionDeclaration {
	return &genai.FunctionDeclaration{
		Name:        SubmitBookingRequest,
		Description: "Submit a service request to the validation queue. Do NOT say 'confirmed'; say 'submitted for approval'. Requires an identified customer.",
		Parameters: &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"date":         stringParam("Requested date in YYYY-MM-DD format."),
				"service_type": stringParam("The service requested, e.g. 'Oil Change'."),
			},
			Required: []string{"date", "service_type"},
		},
	}
}

// Tools returns the tool set registered with the dialogue model.
func Tools() []*genai.Tool {
	return []*genai.Tool{
		{
			FunctionDeclarations: []*genai.FunctionDeclaration{
				LookupCustomerDeclaration(),
				CheckAvailabilityDeclaration(),
				ConsultPolicyDeclaration(),
				SubmitBookingRequestDeclaration(),
			},
		},
	}
}
