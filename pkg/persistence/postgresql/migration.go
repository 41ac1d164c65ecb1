package postgresql

func migrations() map[int]string {
	return map[int]string{
		1: `
			CREATE TABLE requests (
				id UUID PRIMARY KEY,
				workflow_type VARCHAR(50) NOT NULL,
				requester_id VARCHAR(100) NOT NULL,
				requester_name VARCHAR(200) NOT NULL,
				requester_email VARCHAR(200),
				title VARCHAR(200) NOT NULL,
				description TEXT,
				priority VARCHAR(20),
				payload JSONB NOT NULL DEFAULT '{}',
				status VARCHAR(20) NOT NULL,
				current_step VARCHAR(100),
				slots JSONB NOT NULL DEFAULT '[]',
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL,
				submitted_at TIMESTAMP WITH TIME ZONE,
				completed_at TIMESTAMP WITH TIME ZONE
			);

			CREATE INDEX idx_requests_workflow_type ON requests(workflow_type);
			CREATE INDEX idx_requests_requester_id ON requests(requester_id);
			CREATE INDEX idx_requests_status ON requests(status);
			CREATE INDEX idx_requests_slots ON requests USING GIN (slots);

			CREATE TABLE audit_entries (
				id UUID PRIMARY KEY,
				seq BIGSERIAL NOT NULL,
				request_id UUID NOT NULL,
				action VARCHAR(50) NOT NULL,
				actor_id VARCHAR(100),
				actor_name VARCHAR(200),
				actor_type VARCHAR(20) NOT NULL,
				description TEXT,
				data JSONB NOT NULL DEFAULT '{}',
				resulting_status VARCHAR(20) NOT NULL,
				resulting_step VARCHAR(100),
				created_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX idx_audit_entries_request_id ON audit_entries(request_id, seq);
			CREATE INDEX idx_audit_entries_action ON audit_entries(action);

			-- The audit trail is append-only. Revoking row mutation at the
			-- schema level keeps the invariant even against buggy callers.
			CREATE RULE audit_entries_no_update AS ON UPDATE TO audit_entries DO INSTEAD NOTHING;
			CREATE RULE audit_entries_no_delete AS ON DELETE TO audit_entries DO INSTEAD NOTHING;
		`,
	}
}
