package postgresql

func migrations() map[int]string {
	return map[int]string{
		1: `
			-- Establishment requests; status only moves through guarded updates
			CREATE TABLE establishment_requests (
				id VARCHAR(64) PRIMARY KEY,
				club_name VARCHAR(255) NOT NULL,
				club_code VARCHAR(64) NOT NULL,
				description TEXT NOT NULL DEFAULT '',
				category VARCHAR(128) NOT NULL DEFAULT '',
				contact_email VARCHAR(255) NOT NULL,
				contact_phone VARCHAR(64) NOT NULL DEFAULT '',
				requester_id VARCHAR(255) NOT NULL,
				requester_name VARCHAR(255) NOT NULL DEFAULT '',
				status VARCHAR(64) NOT NULL,
				assigned_reviewer_id VARCHAR(255),
				club_id VARCHAR(64),
				version BIGINT NOT NULL DEFAULT 1,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX idx_establishment_requests_status ON establishment_requests(status);
			CREATE INDEX idx_establishment_requests_requester_id ON establishment_requests(requester_id);
			CREATE INDEX idx_establishment_requests_reviewer_id ON establishment_requests(assigned_reviewer_id);
			CREATE INDEX idx_establishment_requests_created_at ON establishment_requests(created_at);

			-- Append-only audit trail
			CREATE TABLE workflow_history (
				id VARCHAR(64) PRIMARY KEY,
				request_id VARCHAR(64) NOT NULL REFERENCES establishment_requests(id),
				seq BIGSERIAL NOT NULL,
				step_code VARCHAR(64) NOT NULL,
				action VARCHAR(64) NOT NULL,
				from_status VARCHAR(64) NOT NULL,
				to_status VARCHAR(64) NOT NULL,
				actor_id VARCHAR(255) NOT NULL,
				comment TEXT,
				result VARCHAR(16),
				action_date TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX idx_workflow_history_request_id ON workflow_history(request_id, seq);

			-- Proposal, defense schedule and final form versions
			CREATE TABLE artifacts (
				id VARCHAR(64) PRIMARY KEY,
				request_id VARCHAR(64) NOT NULL REFERENCES establishment_requests(id),
				kind VARCHAR(32) NOT NULL CHECK (kind IN ('proposal', 'defense_schedule', 'final_form')),
				version INT NOT NULL,
				document_ref TEXT,
				comment TEXT,
				created_by VARCHAR(255) NOT NULL,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				starts_at TIMESTAMP WITH TIME ZONE,
				ends_at TIMESTAMP WITH TIME ZONE,
				location VARCHAR(255),
				UNIQUE (request_id, kind, version)
			);

			CREATE TABLE clubs (
				id VARCHAR(64) PRIMARY KEY,
				name VARCHAR(255) NOT NULL,
				code VARCHAR(64) NOT NULL,
				description TEXT NOT NULL DEFAULT '',
				category VARCHAR(128) NOT NULL DEFAULT '',
				president_id VARCHAR(255) NOT NULL,
				request_id VARCHAR(64) NOT NULL UNIQUE REFERENCES establishment_requests(id),
				created_at TIMESTAMP WITH TIME ZONE NOT NULL
			);
		`,
	}
}
