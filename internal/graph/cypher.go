package graph

const (
	saveNodeQuery = `
		MERGE (n:Entity {id: $id})
		ON CREATE SET n.type = $type,
			n.canonical_name = $canonical_name,
			n.aliases = [$canonical_name],
			n.created_at = $created_at
		RETURN n.id AS id
	`

	setNodePropertyQuery = `
		MATCH (n:Entity {id: $id})
		OPTIONAL MATCH (n)-[:HAS_PROPERTY]->(existing:Property {name: $name})
		WITH n, existing
		WHERE existing IS NULL
			OR existing.last_updated < $last_updated
			OR (existing.last_updated = $last_updated AND existing.confidence < $confidence)
		MERGE (n)-[:HAS_PROPERTY]->(p:Property {name: $name})
		SET p.value = $value,
			p.confidence = $confidence,
			p.source_url = $source_url,
			p.method = $method,
			p.last_updated = $last_updated
		RETURN p.name AS name
	`

	addAliasQuery = `
		MATCH (n:Entity {id: $id})
		WHERE NOT $alias IN n.aliases
		SET n.aliases = n.aliases + $alias
		RETURN n.id AS id
	`

	nodeExistsQuery = `
		MATCH (n:Entity {id: $id})
		RETURN n.id AS id
	`

	getNodeQuery = `
		MATCH (n:Entity {id: $id})
		OPTIONAL MATCH (n)-[:HAS_PROPERTY]->(p:Property)
		RETURN n.id AS id, n.type AS type, n.canonical_name AS canonical_name,
			n.aliases AS aliases, n.created_at AS created_at,
			COLLECT(p {.name, .value, .confidence, .source_url, .method, .last_updated}) AS props
	`

	getActiveEdgeQuery = `
		MATCH (s:Entity {id: $source_id})-[e:FACT {relation: $relation}]->(t:Entity {id: $target_id})
		WHERE NOT coalesce(e.stale, false)
		RETURN e.uuid AS uuid, e.confidence AS confidence
	`

	saveEdgeQuery = `
		MATCH (s:Entity {id: $source_id})
		MATCH (t:Entity {id: $target_id})
		MERGE (s)-[e:FACT {uuid: $uuid}]->(t)
		SET e.relation = $relation,
			e.confidence = $confidence,
			e.properties = $properties,
			e.source_url = $source_url,
			e.method = $method,
			e.fetched_at = $fetched_at,
			e.last_seen = $last_seen,
			e.stale = false
		RETURN e.uuid AS uuid
	`

	refreshEdgeQuery = `
		MATCH ()-[e:FACT {uuid: $uuid}]->()
		SET e.confidence = $confidence,
			e.properties = $properties,
			e.last_seen = $last_seen
		RETURN e.uuid AS uuid
	`

	recordCorroborationQuery = `
		MATCH ()-[e:FACT {uuid: $uuid}]->()
		SET e.corroborations = coalesce(e.corroborations, []) + $entry
		RETURN e.uuid AS uuid
	`

	edgesFromQuery = `
		MATCH (s:Entity {id: $id})-[e:FACT]->(t:Entity)
		WHERE NOT coalesce(e.stale, false)
			AND ($relation = '' OR e.relation = $relation)
		RETURN e.uuid AS uuid, s.id AS source_id, t.id AS target_id,
			e.relation AS relation, e.confidence AS confidence,
			e.properties AS properties, e.last_seen AS last_seen
	`

	findByAliasQuery = `
		MATCH (n:Entity)
		WHERE ANY(a IN n.aliases WHERE toLower(a) = $alias)
			OR toLower(n.canonical_name) CONTAINS $alias
		OPTIONAL MATCH (n)-[:HAS_PROPERTY]->(p:Property)
		WITH n, max(coalesce(p.confidence, 0.0)) AS confidence,
			max(coalesce(p.last_updated, n.created_at)) AS last_updated,
			CASE WHEN ANY(a IN n.aliases WHERE toLower(a) = $alias) THEN 1.0 ELSE 0.8 END AS score
		RETURN n.id AS id, n.type AS type, n.canonical_name AS canonical_name,
			n.aliases AS aliases, score, confidence, last_updated
		ORDER BY score DESC, confidence DESC, last_updated DESC, id ASC
		LIMIT 25
	`

	nodesByTypeQuery = `
		MATCH (n:Entity {type: $type})
		RETURN n.id AS id, n.type AS type, n.canonical_name AS canonical_name,
			n.aliases AS aliases, n.created_at AS created_at
		ORDER BY n.created_at DESC
		LIMIT $limit
	`

	markStaleQuery = `
		MATCH ()-[e:FACT {uuid: $uuid}]->()
		SET e.stale = true,
			e.superseded_by = $superseded_by
		RETURN e.uuid AS uuid
	`

	// Bounded variable-length expansion; hop depth is interpolated because
	// Cypher does not parameterize pattern lengths. The visit ceiling is
	// applied through LIMIT on distinct reached nodes. Stale edges are
	// excluded unless the traversal asks for them.
	neighborsQueryFmt = `
		MATCH (start:Entity {id: $id})
		MATCH path = (start)-[es:FACT*1..%d]-(m:Entity)
		WHERE ALL(e IN es WHERE ($include_stale OR NOT coalesce(e.stale, false))
			AND ($relation = '' OR e.relation = $relation))
		WITH start, m, es
		LIMIT $ceiling
		UNWIND es AS e
		WITH start, m, e, startNode(e) AS src, endNode(e) AS dst
		RETURN DISTINCT e.uuid AS uuid, src.id AS source_id, dst.id AS target_id,
			e.relation AS relation, e.confidence AS confidence,
			e.properties AS properties, e.last_seen AS last_seen,
			coalesce(e.stale, false) AS stale, coalesce(e.superseded_by, '') AS superseded_by,
			m.id AS node_id, m.type AS node_type, m.canonical_name AS node_name, m.aliases AS node_aliases
	`
)
