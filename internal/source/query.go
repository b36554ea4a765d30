package source

const selectClause = "SELECT\n" +
	"  cpd.`id`,\n" +
	"  cpd.`entity_id`,\n" +
	"  ce.`event_type_id`,\n" +
	"  ce.`id` AS eid,\n" +
	"  ce.`title`,\n" +
	"  pei.`accounting_course_id_201`,\n" +
	"  CONCAT(cpd.`first_name`, ' ', cpd.`last_name`) AS `name`,\n" +
	"  cpd.`participant_email`,\n" +
	"  cpd.`participant_phone`,\n" +
	"  cpd.`pincode`,\n" +
	"  cpd.`submitted_on`,\n" +
	"  cpd.`referal_site`,\n" +
	"  cpd.`reg_utm_url`,\n" +
	"  pt.`pg_res_msg`,\n" +
	"  pt.`pg_res_code`,\n" +
	"  pt.`id` AS ptid\n" +
	"FROM `civicrm_course_participants_details` cpd\n" +
	"INNER JOIN `civicrm_event` ce ON ce.`id` = cpd.`entity_id`\n" +
	"INNER JOIN `civicrm_value_private_event_information_33` pei ON pei.`entity_id` = ce.`id`\n" +
	"INNER JOIN `payment_transactions` pt ON pt.`participant_id` = cpd.`id`\n"

const groupOrderClause = "GROUP BY cpd.`id`\n" +
	"ORDER BY cpd.`submitted_on` ASC\n"
