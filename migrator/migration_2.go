package migrator

const migration_2 = `
CREATE TABLE <SCHEMA_PLACEHOLDER>.lf_flagging_configurations(
    id varchar(24) NOT NULL,
    parameter_id varchar(24) NOT NULL,
    sex varchar,
    age_group varchar,
    range_min numeric NOT NULL,
    range_max numeric NOT NULL,
    flag_type varchar NOT NULL,
    active bool NOT NULL DEFAULT(true),
    created_by varchar NOT NULL,
    created_at timestamp NOT NULL DEFAULT(now()),
    modified_at timestamp,
    CONSTRAINT lf_pk_flagging_configurations PRIMARY KEY (id),
    CONSTRAINT lf_fk_flagging_configurations_parameter FOREIGN KEY (parameter_id) REFERENCES <SCHEMA_PLACEHOLDER>.lf_parameters(id),
    CONSTRAINT lf_ck_flagging_configurations_range CHECK (range_min < range_max)
);

CREATE INDEX lf_ix_flagging_configurations_parameter ON <SCHEMA_PLACEHOLDER>.lf_flagging_configurations(parameter_id) WHERE active;
`
