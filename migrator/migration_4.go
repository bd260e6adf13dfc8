package migrator

const migration_4 = `
CREATE TABLE <SCHEMA_PLACEHOLDER>.lf_audit_events(
    id uuid NOT NULL,
    actor varchar NOT NULL,
    "action" varchar NOT NULL,
    entity_type varchar NOT NULL,
    entity_id varchar NOT NULL,
    description varchar NOT NULL DEFAULT(''),
    changed_fields text NOT NULL DEFAULT('{}'),
    created_at timestamp NOT NULL DEFAULT(now()),
    CONSTRAINT lf_pk_audit_events PRIMARY KEY (id)
);

CREATE INDEX lf_ix_audit_events_entity ON <SCHEMA_PLACEHOLDER>.lf_audit_events(entity_type, entity_id);
`
