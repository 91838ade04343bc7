package emergency

// TargetKind names a notification group.
type TargetKind string

const (
	// TargetServices is the "authorities informed" group.
	TargetServices TargetKind = "services"
	// TargetContact is one personal emergency contact.
	TargetContact TargetKind = "contact"
	// TargetSubject is the subject's own confirmation.
	TargetSubject TargetKind = "subject"
)

// Channel names the transport a notification went through.
type Channel string

const (
	// ChannelSMS is a text message.
	ChannelSMS Channel = "sms"
	// ChannelEmail is an email message.
	ChannelEmail Channel = "email"
	// ChannelAPI is a post to the emergency-services endpoint.
	ChannelAPI Channel = "api"
)

// GroupStatus summarises the outcomes of one target group.
type GroupStatus string

const (
	// GroupSucceeded means at least one send in the group succeeded.
	GroupSucceeded GroupStatus = "succeeded"
	// GroupFailed means every attempted send in the group failed.
	GroupFailed GroupStatus = "failed"
	// GroupSkipped means nothing was attempted for the group.
	GroupSkipped GroupStatus = "skipped"
)

// NotificationOutcome is the result of one send.
type NotificationOutcome struct {
	// Target is the group the send belongs to.
	Target TargetKind
	// Channel is the transport used.
	Channel Channel
	// Recipient is the phone number, email or endpoint addressed.
	Recipient string
	// Success reports whether the collaborator accepted the message.
	Success bool
	// Error describes the failure, empty on success.
	Error string
}

// FanoutReport lists the outcome of every send of one dispatch.
type FanoutReport struct {
	// Outcomes in a deterministic order: services, contacts in list order, subject sms, subject email.
	Outcomes []NotificationOutcome
}

// Group returns the aggregated status of a target group.
func (r *FanoutReport) Group(target TargetKind) GroupStatus {
	status := GroupSkipped

	for _, o := range r.Outcomes {
		if o.Target != target {
			continue
		}

		if o.Success {
			return GroupSucceeded
		}

		status = GroupFailed
	}

	return status
}

// Succeeded counts successful sends.
func (r *FanoutReport) Succeeded() int {
	count := 0

	for _, o := range r.Outcomes {
		if o.Success {
			count++
		}
	}

	return count
}

// Clone returns a deep copy of the report.
func (r *FanoutReport) Clone() *FanoutReport {
	if r == nil {
		return nil
	}

	return &FanoutReport{
		Outcomes: append([]NotificationOutcome(nil), r.Outcomes...),
	}
}
