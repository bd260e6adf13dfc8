package migrator

const migration_1 = `
CREATE TABLE <SCHEMA_PLACEHOLDER>.lf_patients(
    id varchar(24) NOT NULL,
    first_name varchar NOT NULL,
    last_name varchar NOT NULL,
    sex varchar,
    date_of_birth date,
    created_at timestamp NOT NULL DEFAULT(now()),
    CONSTRAINT lf_pk_patients PRIMARY KEY (id)
);

CREATE TABLE <SCHEMA_PLACEHOLDER>.lf_instruments(
    id varchar(24) NOT NULL,
    "name" varchar NOT NULL,
    status varchar NOT NULL DEFAULT('OFFLINE'),
    created_at timestamp NOT NULL DEFAULT(now()),
    modified_at timestamp,
    CONSTRAINT lf_pk_instruments PRIMARY KEY (id)
);

CREATE TABLE <SCHEMA_PLACEHOLDER>.lf_parameters(
    id varchar(24) NOT NULL,
    code varchar NOT NULL,
    "name" varchar NOT NULL,
    unit varchar NOT NULL DEFAULT(''),
    active bool NOT NULL DEFAULT(true),
    CONSTRAINT lf_pk_parameters PRIMARY KEY (id),
    CONSTRAINT lf_uq_parameters_code UNIQUE (code)
);

CREATE TABLE <SCHEMA_PLACEHOLDER>.lf_test_orders(
    id varchar(24) NOT NULL,
    order_number varchar NOT NULL,
    barcode varchar NOT NULL,
    patient_id varchar(24) NOT NULL,
    instrument_id varchar(24),
    status varchar NOT NULL DEFAULT('pending'),
    created_by varchar NOT NULL,
    created_at timestamp NOT NULL DEFAULT(now()),
    modified_at timestamp,
    run_by varchar,
    run_at timestamp,
    deleted_at timestamp,
    CONSTRAINT lf_pk_test_orders PRIMARY KEY (id),
    CONSTRAINT lf_uq_test_orders_order_number UNIQUE (order_number),
    CONSTRAINT lf_uq_test_orders_barcode UNIQUE (barcode),
    CONSTRAINT lf_fk_test_orders_patient FOREIGN KEY (patient_id) REFERENCES <SCHEMA_PLACEHOLDER>.lf_patients(id),
    CONSTRAINT lf_fk_test_orders_instrument FOREIGN KEY (instrument_id) REFERENCES <SCHEMA_PLACEHOLDER>.lf_instruments(id)
);

CREATE INDEX lf_ix_test_orders_patient_status ON <SCHEMA_PLACEHOLDER>.lf_test_orders(patient_id, status);

CREATE TABLE <SCHEMA_PLACEHOLDER>.lf_test_results(
    id varchar(24) NOT NULL,
    order_id varchar(24) NOT NULL,
    parameter_id varchar(24) NOT NULL,
    parameter_code varchar NOT NULL,
    "value" numeric NOT NULL,
    unit varchar NOT NULL DEFAULT(''),
    reference_range varchar NOT NULL DEFAULT(''),
    is_flagged bool NOT NULL DEFAULT(false),
    flag_severity varchar,
    reagent_lot_number varchar,
    measured_at timestamp NOT NULL,
    created_at timestamp NOT NULL DEFAULT(now()),
    CONSTRAINT lf_pk_test_results PRIMARY KEY (id),
    CONSTRAINT lf_fk_test_results_order FOREIGN KEY (order_id) REFERENCES <SCHEMA_PLACEHOLDER>.lf_test_orders(id)
);

CREATE TABLE <SCHEMA_PLACEHOLDER>.lf_order_comments(
    id varchar(24) NOT NULL,
    order_id varchar(24) NOT NULL,
    "text" varchar NOT NULL,
    created_by varchar NOT NULL,
    created_at timestamp NOT NULL DEFAULT(now()),
    modified_at timestamp,
    deleted_at timestamp,
    CONSTRAINT lf_pk_order_comments PRIMARY KEY (id),
    CONSTRAINT lf_fk_order_comments_order FOREIGN KEY (order_id) REFERENCES <SCHEMA_PLACEHOLDER>.lf_test_orders(id)
);

CREATE TABLE <SCHEMA_PLACEHOLDER>.lf_raw_results(
    id varchar(24) NOT NULL,
    order_id varchar(24) NOT NULL,
    instrument_id varchar(24) NOT NULL,
    message text NOT NULL,
    created_at timestamp NOT NULL DEFAULT(now()),
    synced_at timestamp,
    CONSTRAINT lf_pk_raw_results PRIMARY KEY (id),
    CONSTRAINT lf_fk_raw_results_order FOREIGN KEY (order_id) REFERENCES <SCHEMA_PLACEHOLDER>.lf_test_orders(id)
);
`
