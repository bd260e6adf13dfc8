package migrator

const migration_3 = `
CREATE TABLE <SCHEMA_PLACEHOLDER>.lf_reagent_inventory(
    id varchar(24) NOT NULL,
    reagent_type_id varchar(24) NOT NULL,
    "name" varchar NOT NULL,
    lot_number varchar NOT NULL,
    expiration_date date NOT NULL,
    quantity_received numeric NOT NULL,
    quantity_in_stock numeric NOT NULL,
    status varchar NOT NULL DEFAULT('received'),
    return_reason varchar,
    created_at timestamp NOT NULL DEFAULT(now()),
    modified_at timestamp,
    CONSTRAINT lf_pk_reagent_inventory PRIMARY KEY (id),
    CONSTRAINT lf_ck_reagent_inventory_stock CHECK (quantity_in_stock >= 0 AND quantity_in_stock <= quantity_received)
);

CREATE TABLE <SCHEMA_PLACEHOLDER>.lf_instrument_reagents(
    id varchar(24) NOT NULL,
    instrument_id varchar(24) NOT NULL,
    reagent_type_id varchar(24) NOT NULL,
    "name" varchar NOT NULL,
    lot_number varchar NOT NULL,
    expiration_date date NOT NULL,
    quantity numeric NOT NULL,
    quantity_remaining numeric NOT NULL,
    status varchar NOT NULL DEFAULT('in_use'),
    installed_by varchar NOT NULL,
    installed_at timestamp NOT NULL DEFAULT(now()),
    modified_at timestamp,
    CONSTRAINT lf_pk_instrument_reagents PRIMARY KEY (id),
    CONSTRAINT lf_fk_instrument_reagents_instrument FOREIGN KEY (instrument_id) REFERENCES <SCHEMA_PLACEHOLDER>.lf_instruments(id),
    CONSTRAINT lf_ck_instrument_reagents_remaining CHECK (quantity_remaining >= 0 AND quantity_remaining <= quantity)
);

CREATE INDEX lf_ix_instrument_reagents_lot ON <SCHEMA_PLACEHOLDER>.lf_instrument_reagents(instrument_id, lot_number);

CREATE TABLE <SCHEMA_PLACEHOLDER>.lf_reagent_usage_history(
    id varchar(24) NOT NULL,
    lot_number varchar NOT NULL,
    instrument_id varchar(24) NOT NULL,
    order_id varchar(24),
    quantity_used numeric NOT NULL,
    used_by varchar NOT NULL,
    used_at timestamp NOT NULL DEFAULT(now()),
    CONSTRAINT lf_pk_reagent_usage_history PRIMARY KEY (id),
    CONSTRAINT lf_fk_reagent_usage_history_instrument FOREIGN KEY (instrument_id) REFERENCES <SCHEMA_PLACEHOLDER>.lf_instruments(id)
);
`
